package sink

import (
	"context"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/odect/odect/internal/common"
	"github.com/odect/odect/pkg/psr"
)

// Measurements written to InfluxDB.
const (
	generationMeasurement = "generation"
	emissionsMeasurement  = "emissions"
	aefMeasurement        = "aef"
)

// InfluxDB writes batches to an InfluxDB v2 bucket.
type InfluxDB struct {
	logger   *slog.Logger
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxDB returns a new InfluxDB sink after checking the server health.
func NewInfluxDB(ctx context.Context, c *InfluxDBConfig, logger *slog.Logger) (*InfluxDB, error) {
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return nil, fmt.Errorf("%w: influxdb: url, org and bucket are required", ErrMisconfigured)
	}

	client := influxdb2.NewClient(c.URL, c.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()

		return nil, fmt.Errorf("%w: influxdb: %w", ErrPublish, err)
	}

	logger.Debug("InfluxDB sink ready", "url", c.URL, "org", c.Org, "bucket", c.Bucket)

	return &InfluxDB{
		logger:   logger,
		client:   client,
		writeAPI: client.WriteAPIBlocking(c.Org, c.Bucket),
	}, nil
}

// Name returns the sink name.
func (s *InfluxDB) Name() string {
	return "influxdb"
}

// Publish writes the generation of every matrix column, the emissions of
// every type and the AEF of every hour.
func (s *InfluxDB) Publish(ctx context.Context, b *Batch) error {
	points := Points(b)
	if len(points) == 0 {
		return nil
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: influxdb: %w", ErrPublish, err)
	}

	s.logger.Debug("Points written to InfluxDB", "points", len(points))

	return nil
}

// Close closes the client.
func (s *InfluxDB) Close() error {
	s.client.Close()

	return nil
}

// Points returns the InfluxDB points of a batch.
func Points(b *Batch) []*write.Point {
	var points []*write.Point

	for _, h := range Hours(b) {
		for col, v := range h.Generation {
			ticker, zone := psr.SplitColumn(col)
			points = append(points, write.NewPoint(
				generationMeasurement,
				map[string]string{"target": h.Zone, "series": col, "ticker": ticker, "zone": zone},
				map[string]any{"mw": v},
				h.Timestamp,
			))
		}

		for t, v := range h.Emissions {
			points = append(points, write.NewPoint(
				emissionsMeasurement,
				map[string]string{"target": h.Zone, "ticker": t, "group": psr.DisplayGroup(t)},
				map[string]any{"kg": v},
				h.Timestamp,
			))
		}

		points = append(points, write.NewPoint(
			aefMeasurement,
			map[string]string{"target": h.Zone},
			map[string]any{"kg_per_mwh": common.SanitizeFloat(h.AEF)},
			h.Timestamp,
		))
	}

	return points
}
