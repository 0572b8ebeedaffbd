// Package exporter provides CSV export functionality for harvested
// course activity.
//
// CSVWriter is the low-level writer (headers, directory creation);
// ActivityExporter produces the per-course activity files
// with the fixed student_id,student_name,date,page_views schema.
package exporter
