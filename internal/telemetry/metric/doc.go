// Package metric provides Prometheus metrics for KVMesh.
//
// This package registers the server's instruments on a dedicated
// Prometheus registry:
//
//   - kvmesh_connections_active, kvmesh_connections_total
//   - kvmesh_commands_total (labeled by command), kvmesh_command_errors_total
//   - kvmesh_keys_expired_total and the kvmesh_keys gauge
//
// Handler returns an http.Handler serving the registry in Prometheus
// exposition format, mounted by the server process when metrics are
// enabled.
package metric
