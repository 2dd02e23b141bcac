// Package nvs provides the durable key-value store the provisioning subsystem
// persists its record into.
//
// The store mirrors the semantics of a flash NVS partition: blobs are staged
// with SetBlob and Erase and become durable only when Commit returns without
// error. Reads observe staged values, so a caller sees its own writes before
// committing.
//
// # Backends
//
//   - MemStore: in-memory, with fault injection for tests
//   - FileStore: a YAML document replaced atomically (tmp file + rename) on commit
//   - SQLiteStore: a SQLite database, staged writes applied in one transaction
//
// # Usage
//
//	store, err := nvs.Open(nvs.BackendFile, "/var/lib/wifiprovd/nvs.yaml")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if err := store.SetBlob("wifi.prov", data); err != nil {
//	    return err
//	}
//	if err := store.Commit(); err != nil {
//	    return err // nothing was made durable
//	}
//
// All backends are safe for concurrent use.
package nvs
