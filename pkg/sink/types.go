// Package sink replicates reconstructed generation and emission series to
// downstream systems.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odect/odect/pkg/emissions"
	"github.com/odect/odect/pkg/models"
)

// Custom errors.
var (
	ErrMisconfigured = errors.New("sink is misconfigured")
	ErrPublish       = errors.New("publishing to sink failed")
)

// Batch is the output of one run.
type Batch struct {
	// Zone is the target zone name.
	Zone   string
	Matrix *models.Matrix
	Result *emissions.Result
}

// Sink publishes batches.
type Sink interface {
	Name() string
	Publish(ctx context.Context, b *Batch) error
	Close() error
}

// InfluxDBConfig contains the InfluxDB v2 sink configuration.
type InfluxDBConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// KafkaConfig contains the Kafka sink configuration.
type KafkaConfig struct {
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	ClientID string        `yaml:"client_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config contains the configuration of all sinks. Unset sinks are disabled.
type Config struct {
	InfluxDB *InfluxDBConfig `yaml:"influxdb"`
	Kafka    *KafkaConfig    `yaml:"kafka"`
}

// Hour is the message published for every hour.
type Hour struct {
	Timestamp time.Time `json:"timestamp"`
	Zone      string    `json:"zone"`
	// AEF in kg/MWh.
	AEF float64 `json:"aef"`
	// Generation per matrix column in MW.
	Generation map[string]float64 `json:"generation"`
	// Emissions per generation type in kg.
	Emissions map[string]float64 `json:"emissions"`
}

// Hours flattens a batch into one message per hour of the result.
func Hours(b *Batch) []Hour {
	if b.Result == nil {
		return nil
	}

	rows := make(map[int64]models.Row)
	if b.Matrix != nil {
		for _, r := range b.Matrix.Rows {
			rows[r.Timestamp.Unix()] = r
		}
	}

	hours := make([]Hour, b.Result.Len())

	for i, ts := range b.Result.Timestamps {
		h := Hour{
			Timestamp:  ts,
			Zone:       b.Zone,
			AEF:        b.Result.AEF[i],
			Generation: make(map[string]float64),
			Emissions:  make(map[string]float64, len(b.Result.Types)),
		}

		if r, ok := rows[ts.Unix()]; ok {
			for col, v := range r.Values {
				h.Generation[col] = v
			}
		}

		for j, t := range b.Result.Types {
			h.Emissions[t] = b.Result.Emissions[i][j]
		}

		hours[i] = h
	}

	return hours
}

// New returns the sinks enabled in c.
func New(ctx context.Context, c *Config, logger *slog.Logger) ([]Sink, error) {
	if c == nil {
		return nil, nil
	}

	var sinks []Sink

	if c.InfluxDB != nil {
		s, err := NewInfluxDB(ctx, c.InfluxDB, logger)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, s)
	}

	if c.Kafka != nil {
		s, err := NewKafka(c.Kafka, logger)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}

			return nil, err
		}

		sinks = append(sinks, s)
	}

	return sinks, nil
}
