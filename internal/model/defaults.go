package model

import "time"

// Shared defaults used by the server and the engine packages.
const (
	DefaultBinCount    = 10
	MaxBinCount        = 500
	DefaultAuthTimeout = 5 * time.Second
	DefaultSessionTTL  = 30 * time.Minute
	DefaultExportName  = "DrillGIS.csv"
	OtherLabel         = "Other"
)
