package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	series TEXT NOT NULL,
	value_count INTEGER NOT NULL,
	candle_count INTEGER NOT NULL,
	notes TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS candles (
	run_id TEXT NOT NULL,
	series TEXT NOT NULL,
	instrument TEXT NOT NULL,
	kind TEXT NOT NULL,
	seq INTEGER NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	open TEXT NOT NULL,
	high TEXT NOT NULL,
	low TEXT NOT NULL,
	close TEXT NOT NULL,
	volume TEXT NOT NULL,
	trades INTEGER NOT NULL,
	PRIMARY KEY (run_id, series, seq)
);

CREATE INDEX IF NOT EXISTS idx_candles_series_open ON candles(series, open_time);
`
