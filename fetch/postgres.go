//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fetch

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// pgFetcher serves raw series out of a PostgreSQL samples table. The
// percentile-range statistic is a filtered count over the window, so
// the quantizer needs no special backend support here.
type pgFetcher struct {
	dbConn   *sql.DB
	prefix   string
	sqlStats map[Stat]*sql.Stmt
	sqlRange *sql.Stmt
	sqlExpr  *sql.Stmt
}

// InitDb connects, creates the samples table if missing and prepares
// all statements. The prefix allows multiple deployments to share a
// database.
func InitDb(connectString, prefix string) (Fetcher, error) {
	dbConn, err := sql.Open("postgres", connectString)
	if err != nil {
		return nil, err
	}
	p := &pgFetcher{dbConn: dbConn, prefix: prefix}
	if err := p.dbConn.Ping(); err != nil {
		return nil, err
	}
	if err := p.createTablesIfNotExist(); err != nil {
		return nil, err
	}
	if err := p.prepareSqlStatements(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *pgFetcher) createTablesIfNotExist() error {
	create_sql := `
       CREATE TABLE IF NOT EXISTS %[1]ssamples (
       namespace TEXT NOT NULL,
       name TEXT NOT NULL,
       dims TEXT NOT NULL DEFAULT '',
       t TIMESTAMPTZ NOT NULL,
       value DOUBLE PRECISION NOT NULL);

       CREATE INDEX IF NOT EXISTS %[1]ssamples_metric_t_idx
       ON %[1]ssamples (namespace, name, dims, t);
    `
	if rows, err := p.dbConn.Query(fmt.Sprintf(create_sql, p.prefix)); err != nil {
		log.Printf("ERROR: initial CREATE TABLE failed: %v", err)
		return err
	} else {
		rows.Close()
	}
	return nil
}

func (p *pgFetcher) prepareSqlStatements() error {
	// One grid statement per aggregation. The LEFT OUTER JOIN against
	// generate_series keeps every slot; slots with no samples come
	// back NULL and are dropped as gaps when scanning.
	aggs := map[Stat]string{
		StatAvg:         "avg(s.value)",
		StatMin:         "min(s.value)",
		StatMax:         "max(s.value)",
		StatSum:         "sum(s.value)",
		// nullif keeps empty slots gaps rather than zero counts
		StatSampleCount: "nullif(count(s.value), 0)::double precision",
	}
	p.sqlStats = make(map[Stat]*sql.Stmt, len(aggs))
	for stat, agg := range aggs {
		stmt, err := p.dbConn.Prepare(fmt.Sprintf(
			"SELECT tg, %[2]s FROM generate_series($1::timestamptz, $2::timestamptz, ($3)::interval) AS tg "+
				"LEFT OUTER JOIN %[1]ssamples s ON s.namespace = $4 AND s.name = $5 AND s.dims = $6 "+
				"AND s.t >= tg AND s.t < tg + ($3)::interval AND s.t < $7::timestamptz "+
				"GROUP BY tg ORDER BY tg", p.prefix, agg))
		if err != nil {
			return err
		}
		p.sqlStats[stat] = stmt
	}

	var err error
	if p.sqlRange, err = p.dbConn.Prepare(fmt.Sprintf(
		"SELECT count(*), count(*) FILTER (WHERE value >= $1 AND value < $2) "+
			"FROM %[1]ssamples WHERE namespace = $3 AND name = $4 AND dims = $5 "+
			"AND t >= $6::timestamptz AND t < $7::timestamptz", p.prefix)); err != nil {
		return err
	}
	// Dims are matched in Go on the parsed pairs (dimension subset
	// semantics, same as the in-memory backend); SQL only narrows by
	// namespace and name.
	if p.sqlExpr, err = p.dbConn.Prepare(fmt.Sprintf(
		"SELECT namespace, name, dims FROM %[1]ssamples "+
			"WHERE namespace LIKE $1 AND name LIKE $2 "+
			"GROUP BY namespace, name, dims ORDER BY namespace, name, dims", p.prefix)); err != nil {
		return err
	}
	return nil
}

func (p *pgFetcher) Fetch(w Window, specs []SeriesSpec) ([]RawSeries, error) {
	result := make([]RawSeries, len(specs))
	for i, spec := range specs {
		rs := RawSeries{ID: spec.ID, Label: spec.Metric.Label()}
		var err error
		if spec.Range {
			rs.Timestamps, rs.Values, err = p.rangePercent(w, spec)
		} else {
			rs.Timestamps, rs.Values, err = p.gridSeries(w, spec.Metric, spec.Stat)
		}
		if err != nil {
			return nil, err
		}
		result[i] = rs
	}
	return result, nil
}

func (p *pgFetcher) FetchExpression(w Window, expr string) ([]RawSeries, error) {
	pattern, err := ParseMetric(expr)
	if err != nil {
		return nil, err
	}
	rows, err := p.sqlExpr.Query(
		strings.Replace(pattern.Namespace, "*", "%", -1),
		strings.Replace(pattern.Name, "*", "%", -1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matched := make([]Metric, 0)
	for rows.Next() {
		var ns, name, dimstr string
		if err := rows.Scan(&ns, &name, &dimstr); err != nil {
			return nil, err
		}
		m := Metric{Namespace: ns, Name: name, Dimensions: parseDims(dimstr)}
		// matchMetric is the arbiter for both backends; the SQL LIKE
		// is only a prefilter.
		if matchMetric(pattern, m) {
			matched = append(matched, m)
		}
	}

	result := make([]RawSeries, 0, len(matched))
	for _, m := range matched {
		ts, vals, err := p.gridSeries(w, m, StatAvg)
		if err != nil {
			return nil, err
		}
		result = append(result, RawSeries{ID: m.Key(), Label: m.Label(), Timestamps: ts, Values: vals})
	}
	return result, nil
}

func (p *pgFetcher) gridSeries(w Window, m Metric, stat Stat) ([]int64, []float64, error) {
	rows, err := p.sqlStats[stat].Query(
		time.Unix(w.Start, 0), time.Unix(w.End-w.Period, 0),
		fmt.Sprintf("%d seconds", w.Period),
		m.Namespace, m.Name, m.Dimensions.String(),
		time.Unix(w.End, 0))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var ts []int64
	var vals []float64
	for rows.Next() {
		var (
			tg time.Time
			v  sql.NullFloat64
		)
		if err := rows.Scan(&tg, &v); err != nil {
			return nil, nil, err
		}
		if !v.Valid {
			continue // gap
		}
		ts = append(ts, tg.Unix())
		vals = append(vals, v.Float64)
	}
	return ts, vals, rows.Err()
}

func (p *pgFetcher) rangePercent(w Window, spec SeriesSpec) ([]int64, []float64, error) {
	var total, in int64
	err := p.sqlRange.QueryRow(
		spec.Bottom, spec.Top,
		spec.Metric.Namespace, spec.Metric.Name, spec.Metric.Dimensions.String(),
		time.Unix(w.Start, 0), time.Unix(w.End, 0)).Scan(&total, &in)
	if err != nil {
		return nil, nil, err
	}
	if total == 0 {
		return nil, nil, nil
	}
	return []int64{w.Start}, []float64{100 * float64(in) / float64(total)}, nil
}

func parseDims(s string) Ident {
	dims := make(Ident)
	if s == "" {
		return dims
	}
	for _, pair := range strings.Split(s, ",") {
		if i := strings.Index(pair, "="); i > 0 {
			dims[pair[:i]] = pair[i+1:]
		}
	}
	return dims
}
