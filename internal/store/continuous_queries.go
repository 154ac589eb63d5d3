// This file is part of NNTSC.
//
// Copyright (C) 2013-2026 The University of Waikato, Hamilton, New Zealand.
//
// This code has been developed by the WAND Network Research Group at the
// University of Waikato. For further information please see
// http://www.wand.net.nz/
//
// NNTSC is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 2 as
// published by the Free Software Foundation.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wanduow/nntsc/internal/logging"
)

// numericColumnTypes are the data-column types EnsureContinuousQueries
// rolls up with avg(). Array and text/boolean columns are skipped: the
// reference implementation's CQs only ever average scalar metrics
// (latency, loss, byte counts), never the hop/RTT arrays or labels.
var numericColumnTypes = map[string]bool{
	"integer":          true,
	"bigint":           true,
	"smallint":         true,
	"double precision": true,
	"real":             true,
}

// EnsureContinuousQueries installs a pg_cron job per registered
// collection that rolls up its numeric data columns into an hourly (or
// daily, for interval >= 24h) averages table. This is the Go analogue
// of original_source/lib/database.py's periodic rollup registration,
// invoked only when cmd/nntscd is started with --continuous-queries;
// absent the flag the daemon never calls this and runs with no CQs, as
// it always has. Safe to call repeatedly: both the rollup table and the
// cron job are replaced with CREATE TABLE IF NOT EXISTS / unschedule-
// then-reschedule.
func (s *Store) EnsureContinuousQueries(ctx context.Context, interval time.Duration) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS pg_cron`); err != nil {
		return WrapError(err)
	}

	s.mu.RLock()
	schemas := make([]*CollectionSchema, 0, len(s.collections))
	for _, schema := range s.collections {
		schemas = append(schemas, schema)
	}
	s.mu.RUnlock()

	scheduleExpr := cronScheduleExpr(interval)
	for _, schema := range schemas {
		if err := s.scheduleRollup(ctx, schema, scheduleExpr); err != nil {
			return fmt.Errorf("continuous query for %s: %w", schema.Name, err)
		}
	}
	return nil
}

func cronScheduleExpr(interval time.Duration) string {
	if interval >= 24*time.Hour {
		return "@daily"
	}
	return "@hourly"
}

func (s *Store) scheduleRollup(ctx context.Context, schema *CollectionSchema, scheduleExpr string) error {
	numeric := make([]Column, 0, len(schema.DataColumns))
	for _, c := range schema.DataColumns {
		if numericColumnTypes[c.Type] {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) == 0 {
		return nil
	}

	rollupTable := schema.DataTable + "_hourly"

	var selectCols, ddlCols strings.Builder
	for _, c := range numeric {
		fmt.Fprintf(&selectCols, ", avg(%s) AS avg_%s", quoteIdent(c.Name), c.Name)
		fmt.Fprintf(&ddlCols, ", avg_%s DOUBLE PRECISION", c.Name)
	}

	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	stream_id INTEGER NOT NULL,
	bucket_ts INTEGER NOT NULL%s,
	PRIMARY KEY (stream_id, bucket_ts)
)`, quoteIdent(rollupTable), ddlCols.String())
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return WrapError(err)
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (stream_id, bucket_ts%s)
SELECT stream_id, (timestamp / 3600) * 3600 AS bucket_ts%s
FROM %s
WHERE timestamp >= extract(epoch from now() - interval '2 hours')::integer
GROUP BY stream_id, bucket_ts
ON CONFLICT (stream_id, bucket_ts) DO NOTHING`,
		quoteIdent(rollupTable), columnNameList(numeric), selectCols.String(), quoteIdent(schema.DataTable))

	jobName := "nntsc_cq_" + schema.Name

	// Unschedule any previous job under this name before rescheduling;
	// cron.unschedule errors (e.g. job doesn't exist yet) are expected
	// on first run and are not fatal.
	if _, err := s.db.ExecContext(ctx, `SELECT cron.unschedule($1)`, jobName); err != nil {
		logging.Debug().Str("job", jobName).Msg("no prior continuous query job to unschedule")
	}

	if _, err := s.db.ExecContext(ctx, `SELECT cron.schedule($1, $2, $3)`, jobName, scheduleExpr, insert); err != nil {
		return WrapError(err)
	}
	return nil
}

func columnNameList(cols []Column) string {
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, ", avg_%s", c.Name)
	}
	return b.String()
}
