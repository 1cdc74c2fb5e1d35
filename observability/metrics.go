package observability

const (
	MetricIngestorSlotLag        = "ingestor_slot_lag"
	MetricPublisherNATSacksTotal = "publisher_nats_acks_total"
	MetricPublisherNATSErrors    = "publisher_nats_errors_total"

	MetricSwapsTotal           = "ingestor_raydium_swaps_total"
	MetricDecodeErrorsTotal    = "ingestor_raydium_decode_errors_total"
	MetricInstructionsExamined = "ingestor_instructions_examined_total"
	MetricClassifierSkips      = "ingestor_classifier_skips_total"
	MetricBlocksProcessed      = "ingestor_blocks_processed_total"

	MetricBridgeForwardTotal    = "bridge_forwarded_total"
	MetricBridgeDroppedTotal    = "bridge_dropped_total"
	MetricBridgeInvalidTotal    = "bridge_invalid_swaps_total"
	MetricBridgePublishErrors   = "bridge_publish_errors_total"
	MetricBridgeSourceLagSecond = "bridge_source_lag_seconds"
	MetricBridgeLastSlot        = "bridge_last_forwarded_slot"
)
