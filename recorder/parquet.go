package recorder

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// SnapshotRecord is one archived PnL snapshot row.
type SnapshotRecord struct {
	APIKey     string  `parquet:"name=api_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	SnapshotAt int64   `parquet:"name=snapshot_at, type=INT64"`
	TotalPnl   float64 `parquet:"name=total_pnl, type=DOUBLE"`
}

// TickRecord is one archived market trade row.
type TickRecord struct {
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side      string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
	Quantity  float64 `parquet:"name=quantity, type=DOUBLE"`
	TradeTime int64   `parquet:"name=trade_time, type=INT64"`
}

// memoryFile implements the ParquetFile interface over an in-memory buffer
// so files can be written without touching disk before upload.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (mf *memoryFile) Create(name string) (source.ParquetFile, error) { return mf, nil }
func (mf *memoryFile) Open(name string) (source.ParquetFile, error)  { return mf, nil }

func (mf *memoryFile) Seek(offset int64, whence int) (int64, error) {
	return int64(mf.buffer.Len()), nil
}

func (mf *memoryFile) Read(b []byte) (int, error)  { return mf.buffer.Read(b) }
func (mf *memoryFile) Write(b []byte) (int, error) { return mf.buffer.Write(b) }
func (mf *memoryFile) Close() error                { return nil }
func (mf *memoryFile) Bytes() []byte               { return mf.buffer.Bytes() }

// buildParquet serializes rows into a snappy-compressed parquet file.
// schema must be a pointer to the row type.
func buildParquet[T any](schema *T, rows []T) ([]byte, error) {
	mf := newMemoryFile()

	pw, err := writer.NewParquetWriter(mf, schema, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}

	return mf.Bytes(), nil
}
