// Package jobs defines the concept job model and the stores that hold it.
//
// A ConceptJob is one request to turn a concept description into a video. It
// carries the planned scenes, an append-only timestamped log, the ordered clip
// paths produced so far, and the final artifact path once assembled. Only the
// workflow orchestrator and repair loop mutate jobs; everything else reads
// snapshots returned by a Store.
//
// Two Store implementations exist: MemoryStore keeps jobs for the lifetime of
// the process, and SQLiteStore persists them so `clarifai status` can inspect
// runs from another process. Both implement CompareAndSwapStatus atomically so
// status transitions never race.
package jobs
