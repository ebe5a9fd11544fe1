// Package entsoe implements a client for the ENTSO-E transparency platform
// REST API and decoders for its generation and physical flow documents.
package entsoe

import (
	"encoding/xml"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/common/config"
)

// Custom errors.
var (
	ErrNoData             = errors.New("no matching data found")
	ErrUnexpectedDocument = errors.New("unexpected document")
	ErrMixedResolution    = errors.New("periods with different resolutions")
	ErrInvalidResolution  = errors.New("invalid resolution")
	ErrRequestFailed      = errors.New("request failed")
)

// Document and process types.
const (
	docActualGeneration = "A75"
	docPhysicalFlows    = "A11"
	procRealised        = "A16"
)

// periodLayout is the layout of timestamps in API query strings.
const periodLayout = "200601021504"

// timeLayout is the layout of timestamps in documents.
const timeLayout = "2006-01-02T15:04Z07:00"

// Config contains the client configuration.
type Config struct {
	Logger           *slog.Logger
	URL              string
	Token            string
	HTTPClientConfig config.HTTPClientConfig
	Timeout          time.Duration
	MaxRetries       uint64
	CacheTTL         time.Duration
}

type timeInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

type point struct {
	Position int   `xml:"position"`
	Quantity int64 `xml:"quantity"`
}

type period struct {
	TimeInterval timeInterval `xml:"timeInterval"`
	Resolution   string       `xml:"resolution"`
	Points       []point      `xml:"Point"`
}

type psrType struct {
	PSRType string `xml:"psrType"`
}

// generationSeries is a TimeSeries of a GL_MarketDocument. Consumption
// series carry an out bidding zone instead of an in bidding zone.
type generationSeries struct {
	MRID         string   `xml:"mRID"`
	BusinessType string   `xml:"businessType"`
	InZone       string   `xml:"inBiddingZone_Domain.mRID"`
	OutZone      string   `xml:"outBiddingZone_Domain.mRID"`
	CurveType    string   `xml:"curveType"`
	MktPSRType   psrType  `xml:"MktPSRType"`
	Periods      []period `xml:"Period"`
}

// generationDocument is an actual generation per production type document.
type generationDocument struct {
	XMLName    xml.Name           `xml:"GL_MarketDocument"`
	MRID       string             `xml:"mRID"`
	Type       string             `xml:"type"`
	TimeSeries []generationSeries `xml:"TimeSeries"`
}

type flowSeries struct {
	MRID    string   `xml:"mRID"`
	InZone  string   `xml:"in_Domain.mRID"`
	OutZone string   `xml:"out_Domain.mRID"`
	Periods []period `xml:"Period"`
}

// flowDocument is a cross border physical flows document.
type flowDocument struct {
	XMLName    xml.Name     `xml:"Publication_MarketDocument"`
	MRID       string       `xml:"mRID"`
	Type       string       `xml:"type"`
	TimeSeries []flowSeries `xml:"TimeSeries"`
}

type reason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

// acknowledgementDocument is returned instead of data documents on errors
// and when no data is available.
type acknowledgementDocument struct {
	XMLName xml.Name `xml:"Acknowledgement_MarketDocument"`
	MRID    string   `xml:"mRID"`
	Reason  reason   `xml:"Reason"`
}
