package journal

// Decimals are stored as TEXT so that values round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	lots TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME,
	points TEXT NOT NULL,
	profit TEXT NOT NULL,
	commission TEXT NOT NULL,
	swap TEXT NOT NULL,
	net_result TEXT NOT NULL,
	complete INTEGER NOT NULL,
	UNIQUE (account_id, external_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(account_id, close_time);

CREATE TABLE IF NOT EXISTS transactions (
	tx_id TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	type TEXT NOT NULL,
	amount TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME,
	complete INTEGER NOT NULL,
	UNIQUE (account_id, external_id)
);

CREATE TABLE IF NOT EXISTS market_prices (
	symbol TEXT NOT NULL,
	time DATETIME NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	PRIMARY KEY (symbol, time)
);
`
