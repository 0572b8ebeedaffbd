// Package harvest contains the core of the export pipeline: resolving
// which courses to process, harvesting per-student page-view analytics
// for each course, and fanning the work out across a bounded pool of
// workers.
//
// Control flow: Resolver -> Processor -> (Harvester -> Exporter), one
// course per worker task. Per-course failures are contained; only
// configuration errors abort a run.
package harvest
