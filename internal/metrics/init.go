package metrics

// Label values pre-populated by InitializeMetrics.
var (
	Formats          = []string{"gif", "avi", "webm"}
	ConversionStatus = []string{"success", "input", "capacity", "staging", "encode", "verify"}
	EncodeStages     = []string{"encode", "palettegen", "paletteuse"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, format := range Formats {
		for _, status := range ConversionStatus {
			ConversionsTotal.WithLabelValues(format, status)
		}
		ConversionDuration.WithLabelValues(format)
		TransparencyDroppedTotal.WithLabelValues(format)
		ArtifactBytes.WithLabelValues(format)
	}

	for _, stage := range EncodeStages {
		EncodeStageDuration.WithLabelValues(stage)
		EncodeStagesTotal.WithLabelValues(stage, "success")
		EncodeStagesTotal.WithLabelValues(stage, "error")
	}
}
