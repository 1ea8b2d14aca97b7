// Package idforge generates identifiers and transforms them.
//
// The package has three cores:
//   - a reversible encoding pipeline. Ordered string encodings plus an optional
//     compression stage can be wrapped in a self-describing envelope.
//   - a checksum engine with five 32-bit digests (djb2, crc32, adler32, fnv1a,
//     murmur3) rendered as fixed-length base36 strings.
//   - a collision-safe loop that retries a generator under a caller-supplied
//     acceptance predicate with linear or exponential backoff.
//
// Basic Usage:
//
//	gen, err := idforge.NewGenerator(idforge.DefaultSpec(), idforge.WithChecksumTag(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := gen.Next()          // e.g. "aZ3kP0qx_0f4k2m9a"
//	ok := gen.VerifyTag(id)        // true
//
// Envelopes:
//
//	p := idforge.NewPipeline().Add(idforge.Base64, idforge.Hex).Reversible(true)
//	env, _ := p.Process("hello")
//	orig, ok := idforge.Reverse(env) // "hello", true
//
// Collision-safe generation:
//
//	seen := claim.NewMemory()
//	id, err := gen.Safe(ctx, idforge.CollisionStrategy{
//	    MaxAttempts: 5,
//	    Backoff:     idforge.BackoffExponential,
//	    Accept:      seen.Accept,
//	})
//
// Thread Safety:
//
// Generator, RandomSource and Monitor are safe for concurrent use. Pipeline
// builders are not; build a Pipeline once and share it read-only.
//
// Digests are not cryptographic and uniqueness is only as strong as the
// predicate passed to Safe.
package idforge
