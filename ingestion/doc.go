// Package ingestion processes documents into segments, embeddings, entity
// annotations and a knowledge graph.
//
// A Pipeline drives each document through its stages:
//
//	waiting -> chunking -> chunked -> embedding -> embedded
//	        -> ner -> graph_extraction_processing -> completed
//
// with error, paused and cancelled reachable from any non-terminal status.
// Stages are looked up in an explicit Registry and scheduled by a
// Dispatcher, either in-process (InlineDispatcher) or as messages on a
// watermill topic (QueueDispatcher). Segment work is spread over a shared
// workerpool.Pool; each unit is retried under an injected retry.Policy and
// checkpointed into the document's processing metadata, so a failed or
// paused document resumes where it stopped.
//
// Cancel and Pause are cooperative: units already calling out are allowed
// to finish and no new unit starts.
package ingestion
