package store

const (
	insertGenerationStmt = `
INSERT INTO generation ("timestamp", "series", "value")
VALUES (?, ?, round_to(?, ?))
ON CONFLICT ("timestamp", "series") DO UPDATE SET "value" = excluded."value"`

	insertDayStmt = `
INSERT INTO days ("day", "run_id", "digest", "series", "fetched_at")
VALUES (?, ?, ?, ?, ?)
ON CONFLICT ("day") DO UPDATE SET
  "run_id" = excluded."run_id",
  "digest" = excluded."digest",
  "series" = excluded."series",
  "fetched_at" = excluded."fetched_at"`

	// A day is stored once its day record is committed.
	selectDaysStmt = `
SELECT "day" FROM days
WHERE "day" >= ? AND "day" < ?
ORDER BY "day"`

	selectGenerationStmt = `
SELECT "timestamp", "series", "value" FROM generation
WHERE "timestamp" >= ? AND "timestamp" < ?
ORDER BY "timestamp", "series"`

	selectDigestsStmt = `SELECT "day", "digest" FROM days ORDER BY "day"`

	selectSummaryStmt = `
SELECT "series", round_to(avg("value"), ?), max("value"), round_to(sum("value"), ?), count(*)
FROM generation
WHERE "timestamp" >= ? AND "timestamp" < ?
GROUP BY "series"
ORDER BY "series"`
)
