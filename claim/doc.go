// Package claim provides uniqueness stores for idforge's collision-safe
// generation. Each store's Accept method claims a candidate and reports
// whether it was still free, so it can be passed directly as
// idforge.CollisionStrategy.Accept:
//
//	store := claim.NewMemory()
//	id, err := gen.Safe(ctx, idforge.CollisionStrategy{
//	    MaxAttempts: 5,
//	    Accept:      store.Accept,
//	})
//
// Memory keeps claims in process. SQL records them in a table (MySQL in
// production, SQLite for single-host use), ZK creates one znode per claim
// and File keeps a lock-guarded snapshot on disk shared by processes on one
// host.
package claim
