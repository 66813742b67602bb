package clickhouse

// Schema returns the DDL for the price and report tables.
//
// prices has no unique constraint in ClickHouse. ReplacingMergeTree keyed by
// (ticker, date) collapses accidental duplicates on merge, keeping the row
// with the highest keep_rank. keep_rank falls as ingested_at rises, so the
// first stored close wins. Writers still check existing dates under a
// per-ticker lock before inserting.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS prices (
			ticker      LowCardinality(String),
			date        Date,
			close       Decimal(18, 6),
			ingested_at DateTime64(3) DEFAULT now64(3),
			keep_rank   UInt64 MATERIALIZED toUInt64(4102444800000 - toUnixTimestamp64Milli(ingested_at))
		) ENGINE = ReplacingMergeTree(keep_rank)
		ORDER BY (ticker, date)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id                String,
			title             String,
			generated_at      DateTime64(3),
			start_date        Date,
			end_date          Date,
			rows              String,
			total_signals     UInt32,
			total_buys        UInt32,
			total_sells       UInt32,
			successful_trades UInt32,
			success_rate      Decimal(9, 2)
		) ENGINE = MergeTree
		ORDER BY (generated_at, id)`,
	}
}
