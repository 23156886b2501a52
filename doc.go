// Package spawnvm runs a pool of participants where one coordinator spawns
// functions onto worker slots and collects their results.
//
// A participant is started with Run; rank 0 becomes the coordinator and
// executes the application, every other rank serves tasks until the
// coordinator finalizes:
//
//	srv, _ := spawnvm.New(spawnvm.WithFunctions(myService))
//	err := srv.Run(ctx, func(ctx context.Context, sp *spawner.Service) error {
//		ids, _ := sp.Spawn(ctx, "my.method", args, spawner.WithCount(4))
//		outcomes, err := sp.Gather(ctx, ids, time.Minute)
//		...
//	})
//
// Launch runs a whole pool inside one process over the memory transport.
package spawnvm
