package telemetry

// Span names.
const (
	SpanClassify      = "detector.classify"
	SpanDispatch      = "alerts.dispatch"
	SpanChannelSend   = "alerts.channel_send"
	SpanBatchRun      = "batch.run"
	SpanStreamRecord  = "stream.record"
	SpanTileFetch     = "imagery.fetch_tile"
	SpanAcquire       = "imagery.acquire"
	SpanSessionAction = "session.action"
)

// Span attribute keys.
const (
	AttrChannel    = "alert.channel"
	AttrFires      = "alert.fires"
	AttrSucceeded  = "alert.succeeded"
	AttrLabel      = "detection.label"
	AttrConfidence = "detection.confidence"
	AttrRunID      = "batch.run_id"
	AttrFeed       = "batch.feed"
	AttrTileIndex  = "imagery.tile_index"
	AttrTileCount  = "imagery.tile_count"
	AttrSessionID  = "session.id"
)
