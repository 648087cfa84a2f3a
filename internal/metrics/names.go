package metrics

// pipeline 与 pipe 使用的指标名
const (
	UpdatesReceived             = "updates_received"
	UpdatesProcessed            = "updates_processed"
	UpdatesSuccessful           = "updates_successful"
	UpdatesFailed               = "updates_failed"
	UpdatesQueued               = "updates_queued"
	UpdatesProcessTimeNanos     = "updates_process_time_nanoseconds"
	UpdatesProcessTimeMillis    = "updates_process_time_milliseconds"
	AccountUpdatesProcessed     = "account_updates_processed"
	TransactionUpdatesProcessed = "transaction_updates_processed"
	AccountDeletionsProcessed   = "account_deletions_processed"
	BlockDetailsProcessed       = "block_details_processed"
	PipeDurationMillis          = "pipe_duration_milliseconds"
	PipeRuns                    = "pipe_runs"
	PipeSkipped                 = "pipe_skipped"
	PipeFailures                = "pipe_failures"
	DatasourceErrors            = "datasource_errors"
	DatasourceReconnects        = "datasource_reconnects"
	DatasourceLastSlot          = "datasource_last_slot"
)

// 数据源适配与下游处理器使用的指标名
const (
	ProgressSlotsMarked  = "progress_slots_marked"
	CrawlerBlocksFetched = "crawler_blocks_fetched"
	CrawlerSlotsSkipped  = "crawler_slots_skipped"
	CrawlerEmptySlots    = "crawler_empty_slots"
	EventsPublished      = "events_published"
	EventsPublishFailed  = "events_publish_failed"
)
