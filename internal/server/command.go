package server

import (
	"errors"
	"strconv"
	"time"

	"github.com/yndnr/kvmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/kvmesh-go/internal/resp"
	"github.com/yndnr/kvmesh-go/internal/store"
)

// handlerFunc executes one validated command. args includes the command
// name at position 0. Handlers return the reply value; they never write
// to the connection themselves.
type handlerFunc func(s *Server, args [][]byte) resp.Value

// command is one entry of the static command table: an arity validator
// plus a handler. minArgs/maxArgs count arguments after the command
// name; maxArgs -1 means unbounded.
type command struct {
	minArgs int
	maxArgs int
	handler handlerFunc
}

// commandTable maps an upper-cased command name to its validator and
// handler. QUIT is a connection-level command handled by the serve
// loop, not a table entry. The table is populated in init because
// handleCommand itself reads the table for COMMAND COUNT.
var commandTable map[string]command

func init() {
	commandTable = map[string]command{
		"PING":    {0, 1, handlePing},
		"ECHO":    {1, 1, handleEcho},
		"SET":     {2, 5, handleSet},
		"GET":     {1, 1, handleGet},
		"DEL":     {1, -1, handleDel},
		"EXISTS":  {1, -1, handleExists},
		"SETNX":   {2, 2, handleSetNX},
		"SETEX":   {3, 3, handleSetEX},
		"HSET":    {3, -1, handleHSet},
		"HSETNX":  {3, 3, handleHSetNX},
		"HGET":    {2, 2, handleHGet},
		"HMGET":   {2, -1, handleHMGet},
		"HINCRBY": {3, 3, handleHIncrBy},
		"LPUSH":   {2, -1, handleLPush},
		"RPUSH":   {2, -1, handleRPush},
		"LPOP":    {1, 1, handleLPop},
		"RPOP":    {1, 1, handleRPop},
		"LLEN":    {1, 1, handleLLen},
		"LRANGE":  {3, 3, handleLRange},
		"LTRIM":   {3, 3, handleLTrim},
		"LMOVE":   {4, 4, handleLMove},
		"HELLO":   {0, -1, handleHello},
		"COMMAND": {0, -1, handleCommand},
	}
}

// dispatch validates and executes one request. Validation runs before
// any store mutation, and a panicking handler is converted into a
// generic error reply so the connection survives.
func (s *Server) dispatch(name string, args [][]byte) (reply resp.Value) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("command handler panic", "command", name, "panic", r)
			reply = resp.ErrorValue("ERR internal error")
		}
	}()

	if s.metrics != nil {
		s.metrics.CommandsTotal.WithLabelValues(name).Inc()
		defer func() {
			if reply.Type == resp.Error {
				s.metrics.CommandErrors.Inc()
			}
		}()
	}

	cmd, ok := commandTable[name]
	if !ok {
		return resp.ErrorValue("ERR unknown command '" + name + "'")
	}

	n := len(args) - 1
	if n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		return wrongArity(name)
	}

	return cmd.handler(s, args)
}

func wrongArity(name string) resp.Value {
	return resp.ErrorValue("ERR wrong number of arguments for '" + name + "' command")
}

func syntaxError() resp.Value {
	return resp.ErrorValue("ERR syntax error")
}

func notAnInteger() resp.Value {
	return resp.ErrorValue("ERR value is not an integer or out of range")
}

// storeErrorReply translates the store's typed faults into the RESP
// error text clients expect.
func storeErrorReply(err error) resp.Value {
	switch {
	case errors.Is(err, store.ErrWrongType):
		return resp.ErrorValue("WRONGTYPE Operation against a key holding the wrong kind of value")
	case errors.Is(err, store.ErrNotInteger):
		return notAnInteger()
	case errors.Is(err, store.ErrOverflow):
		return resp.ErrorValue("ERR increment or decrement would overflow")
	}
	return resp.ErrorValue("ERR " + err.Error())
}

// ============================================================
// Connection and introspection commands
// ============================================================

func handlePing(_ *Server, args [][]byte) resp.Value {
	if len(args) > 1 {
		return resp.BulkValue(args[1])
	}
	return resp.Pong
}

func handleEcho(_ *Server, args [][]byte) resp.Value {
	return resp.BulkValue(args[1])
}

// handleHello advertises a fixed capability map. This server only ever
// speaks RESP2, so the requested protocol version is ignored.
func handleHello(_ *Server, _ [][]byte) resp.Value {
	return resp.ArrayValue(
		resp.BulkStringValue("server"),
		resp.BulkStringValue("kvmesh"),
		resp.BulkStringValue("version"),
		resp.BulkStringValue(buildinfo.Version),
		resp.BulkStringValue("proto"),
		resp.IntegerValue(2),
		resp.BulkStringValue("mode"),
		resp.BulkStringValue("standalone"),
	)
}

func handleCommand(_ *Server, args [][]byte) resp.Value {
	if len(args) == 1 {
		// Command introspection is not implemented.
		return resp.ArrayValue()
	}
	sub := resp.NormalizeCommandName(args[1])
	if sub == "COUNT" {
		return resp.IntegerValue(int64(len(commandTable)))
	}
	return resp.ErrorValue("ERR unknown COMMAND subcommand '" + sub + "'")
}

// ============================================================
// String commands
// ============================================================

func handleSet(s *Server, args [][]byte) resp.Value {
	key := string(args[1])
	value := args[2]

	var ttl time.Duration
	var nx, xx bool

	for i := 3; i < len(args); i++ {
		switch opt := resp.NormalizeCommandName(args[i]); opt {
		case "EX", "PX":
			if i+1 >= len(args) {
				return syntaxError()
			}
			n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				return notAnInteger()
			}
			if n <= 0 {
				return resp.ErrorValue("ERR invalid expire time in 'set' command")
			}
			if opt == "EX" {
				ttl = time.Duration(n) * time.Second
			} else {
				ttl = time.Duration(n) * time.Millisecond
			}
			i++
		case "NX":
			nx = true
		case "XX":
			xx = true
		default:
			return syntaxError()
		}
	}

	if nx && xx {
		return syntaxError()
	}

	if s.store.Set(key, value, ttl, nx, xx) {
		return resp.OK
	}
	return resp.NullBulk()
}

func handleGet(s *Server, args [][]byte) resp.Value {
	val, err := s.store.Get(string(args[1]))
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.BulkValue(val)
}

func handleSetNX(s *Server, args [][]byte) resp.Value {
	if s.store.Set(string(args[1]), args[2], 0, true, false) {
		return resp.IntegerValue(1)
	}
	return resp.IntegerValue(0)
}

func handleSetEX(s *Server, args [][]byte) resp.Value {
	seconds, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return notAnInteger()
	}
	if seconds <= 0 {
		return resp.ErrorValue("ERR invalid expire time in 'setex' command")
	}
	s.store.Set(string(args[1]), args[3], time.Duration(seconds)*time.Second, false, false)
	return resp.OK
}

func handleDel(s *Server, args [][]byte) resp.Value {
	return resp.IntegerValue(int64(s.store.Del(argsToKeys(args[1:])...)))
}

func handleExists(s *Server, args [][]byte) resp.Value {
	return resp.IntegerValue(int64(s.store.Exists(argsToKeys(args[1:])...)))
}

// ============================================================
// Hash commands
// ============================================================

func handleHSet(s *Server, args [][]byte) resp.Value {
	if (len(args)-2)%2 != 0 {
		return wrongArity("HSET")
	}

	pairs := make([]store.FieldValue, 0, (len(args)-2)/2)
	for i := 2; i < len(args); i += 2 {
		pairs = append(pairs, store.FieldValue{
			Field: string(args[i]),
			Value: args[i+1],
		})
	}

	added, err := s.store.HSet(string(args[1]), pairs...)
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.IntegerValue(int64(added))
}

func handleHSetNX(s *Server, args [][]byte) resp.Value {
	set, err := s.store.HSetNX(string(args[1]), string(args[2]), args[3])
	if err != nil {
		return storeErrorReply(err)
	}
	if set {
		return resp.IntegerValue(1)
	}
	return resp.IntegerValue(0)
}

func handleHGet(s *Server, args [][]byte) resp.Value {
	val, err := s.store.HGet(string(args[1]), string(args[2]))
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.BulkValue(val)
}

func handleHMGet(s *Server, args [][]byte) resp.Value {
	fields := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		fields = append(fields, string(a))
	}

	vals, err := s.store.HMGet(string(args[1]), fields...)
	if err != nil {
		return storeErrorReply(err)
	}

	elems := make([]resp.Value, 0, len(vals))
	for _, v := range vals {
		elems = append(elems, resp.BulkValue(v))
	}
	return resp.ArrayValue(elems...)
}

func handleHIncrBy(s *Server, args [][]byte) resp.Value {
	delta, err := strconv.ParseInt(string(args[3]), 10, 64)
	if err != nil {
		return notAnInteger()
	}

	val, err := s.store.HIncrBy(string(args[1]), string(args[2]), delta)
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.IntegerValue(val)
}

// ============================================================
// List commands
// ============================================================

func handleLPush(s *Server, args [][]byte) resp.Value {
	length, err := s.store.LPush(string(args[1]), args[2:]...)
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.IntegerValue(int64(length))
}

func handleRPush(s *Server, args [][]byte) resp.Value {
	length, err := s.store.RPush(string(args[1]), args[2:]...)
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.IntegerValue(int64(length))
}

func handleLPop(s *Server, args [][]byte) resp.Value {
	val, err := s.store.LPop(string(args[1]))
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.BulkValue(val)
}

func handleRPop(s *Server, args [][]byte) resp.Value {
	val, err := s.store.RPop(string(args[1]))
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.BulkValue(val)
}

func handleLLen(s *Server, args [][]byte) resp.Value {
	length, err := s.store.LLen(string(args[1]))
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.IntegerValue(int64(length))
}

func handleLRange(s *Server, args [][]byte) resp.Value {
	start, stop, errReply := parseRange(args[2], args[3])
	if errReply != nil {
		return *errReply
	}

	vals, err := s.store.LRange(string(args[1]), start, stop)
	if err != nil {
		return storeErrorReply(err)
	}

	elems := make([]resp.Value, 0, len(vals))
	for _, v := range vals {
		elems = append(elems, resp.BulkValue(v))
	}
	return resp.ArrayValue(elems...)
}

func handleLTrim(s *Server, args [][]byte) resp.Value {
	start, stop, errReply := parseRange(args[2], args[3])
	if errReply != nil {
		return *errReply
	}

	if err := s.store.LTrim(string(args[1]), start, stop); err != nil {
		return storeErrorReply(err)
	}
	return resp.OK
}

func handleLMove(s *Server, args [][]byte) resp.Value {
	fromLeft, ok := parseDirection(args[3])
	if !ok {
		return syntaxError()
	}
	toLeft, ok := parseDirection(args[4])
	if !ok {
		return syntaxError()
	}

	val, err := s.store.LMove(string(args[1]), string(args[2]), fromLeft, toLeft)
	if err != nil {
		return storeErrorReply(err)
	}
	return resp.BulkValue(val)
}

// ============================================================
// Argument helpers
// ============================================================

func argsToKeys(args [][]byte) []string {
	keys := make([]string, 0, len(args))
	for _, a := range args {
		keys = append(keys, string(a))
	}
	return keys
}

func parseRange(startArg, stopArg []byte) (int, int, *resp.Value) {
	start, err := strconv.Atoi(string(startArg))
	if err != nil {
		v := notAnInteger()
		return 0, 0, &v
	}
	stop, err := strconv.Atoi(string(stopArg))
	if err != nil {
		v := notAnInteger()
		return 0, 0, &v
	}
	return start, stop, nil
}

func parseDirection(arg []byte) (left, ok bool) {
	switch resp.NormalizeCommandName(arg) {
	case "LEFT":
		return true, true
	case "RIGHT":
		return false, true
	}
	return false, false
}
