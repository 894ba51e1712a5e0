// Package export writes Parquet snapshots of the historical and forecast
// partitions of the series feeds to local disk or Cloud Storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
)

const (
	module = "export"

	historicalFile = "historical.parquet"
	forecastFile   = "forecast.parquet"
	contentType    = "application/octet-stream"
)

type kpRow struct {
	TimeTag     int64   `parquet:"name=time_tag,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	KpIndex     int64   `parquet:"name=kp_index,type=INT64"`
	EstimatedKp float64 `parquet:"name=estimated_kp,type=DOUBLE"`
	Kp          string  `parquet:"name=kp,type=BYTE_ARRAY,convertedtype=UTF8"`
	KpValue     float64 `parquet:"name=kp_value,type=DOUBLE"`
	Level       string  `parquet:"name=level,type=BYTE_ARRAY,convertedtype=UTF8"`
}

type weatherRow struct {
	Hora           int64   `parquet:"name=hora,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	Temperatura    float64 `parquet:"name=temperatura,type=DOUBLE"`
	VelocidadeVent float64 `parquet:"name=velocidade_vent,type=DOUBLE"`
	DirecaoVent    float64 `parquet:"name=direcao_vent,type=DOUBLE"`
	Latitude       float64 `parquet:"name=latitude,type=DOUBLE"`
	Longitude      float64 `parquet:"name=longitude,type=DOUBLE"`
}

func prototype(f feed.Feed) (interface{}, error) {
	switch f {
	case feed.KpIndex:
		return new(kpRow), nil
	case feed.Weather:
		return new(weatherRow), nil
	}
	return nil, fmt.Errorf("feed %s has no partitions to export", f)
}

func toRow(r record.TimedRecord) (interface{}, error) {
	switch v := r.(type) {
	case entity.KpIndex:
		return kpRow{
			TimeTag:     v.TimeTag.UnixMilli(),
			KpIndex:     int64(v.KpIndex),
			EstimatedKp: v.EstimatedKp,
			Kp:          v.Kp,
			KpValue:     v.KpValue(),
			Level:       string(v.Level()),
		}, nil
	case entity.Weather:
		return weatherRow{
			Hora:           v.Hora.UnixMilli(),
			Temperatura:    v.Temperatura,
			VelocidadeVent: v.VelocidadeVent,
			DirecaoVent:    v.DirecaoVent,
			Latitude:       v.Latitude,
			Longitude:      v.Longitude,
		}, nil
	}
	return nil, fmt.Errorf("unsupported record type %T", r)
}

// Records widens a typed slice for Export.
func Records[R record.TimedRecord](rs []R) []record.TimedRecord {
	out := make([]record.TimedRecord, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// ObjectName returns the path of one partition file for f, dated by ref in UTC.
func ObjectName(f feed.Feed, ref time.Time, file string) string {
	return path.Join(string(f), "dt="+ref.UTC().Format("2006-01-02"), file)
}

// Exporter writes partitions as Parquet files through an Uploader.
type Exporter struct {
	uploader    Uploader
	bucket      string
	compression parquet.CompressionCodec
}

// NewExporter creates an Exporter for cfg.
func NewExporter(cfg config.ExportConfig, uploader Uploader) (*Exporter, error) {
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, exception.NewConfigError(module, "invalid export.compression", err)
	}
	return &Exporter{uploader: uploader, bucket: cfg.Storage.BucketName, compression: codec}, nil
}

// Export writes historical.parquet and forecast.parquet for f under
// <feed>/dt=YYYY-MM-DD/. An empty partition is skipped. Both partitions are
// attempted; failures are aggregated.
func (e *Exporter) Export(ctx context.Context, f feed.Feed, ref time.Time, historical, forecast []record.TimedRecord) error {
	var result *multierror.Error
	for _, part := range []struct {
		file    string
		records []record.TimedRecord
	}{
		{historicalFile, historical},
		{forecastFile, forecast},
	} {
		if len(part.records) == 0 {
			logger.Debugf("Export: no %s records for '%s', skipping.", strings.TrimSuffix(part.file, ".parquet"), f)
			continue
		}
		if err := e.write(ctx, f, ObjectName(f, ref, part.file), part.records); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (e *Exporter) write(ctx context.Context, f feed.Feed, objectName string, records []record.TimedRecord) (err error) {
	proto, err := prototype(f)
	if err != nil {
		return exception.NewStoreError(module, "export "+objectName, err)
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, proto, 1)
	if err != nil {
		return exception.NewStoreError(module, "create parquet writer for "+objectName, err)
	}
	pw.CompressionType = e.compression

	for _, r := range records {
		row, err := toRow(r)
		if err != nil {
			return exception.NewStoreError(module, "convert record for "+objectName, err)
		}
		if err := pw.Write(row); err != nil {
			return exception.NewStoreError(module, "write parquet row for "+objectName, err)
		}
	}

	// WriteStop can panic on schema mismatches inside the library.
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewStoreError(module, "finalize "+objectName, fmt.Errorf("parquet writer panicked: %v", r))
		}
	}()
	if err := pw.WriteStop(); err != nil {
		return exception.NewStoreError(module, "finalize "+objectName, err)
	}

	if err := e.uploader.Upload(ctx, e.bucket, objectName, buf, contentType); err != nil {
		return exception.NewStoreError(module, "upload "+objectName, err)
	}
	logger.Infof("Export: wrote %d '%s' records to %s (%s).", len(records), f, objectName, e.uploader.Type())
	return nil
}

// Close closes the uploader.
func (e *Exporter) Close() error {
	return e.uploader.Close()
}

func compressionCodec(name string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(name) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", name)
	}
}
