// Package rollup re-aggregates exported activity CSVs from hourly (or
// mixed) granularity into daily totals per student, preserving the
// export schema. It runs independently of the harvester and is
// idempotent over its own output. An optional Excel summary workbook
// can be produced alongside the daily CSVs.
package rollup
