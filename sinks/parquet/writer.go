package parquet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/snappy"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

var ErrWriterDisabled = errors.New("parquet writer disabled: missing configuration")

// Writer buffers swap rows and periodically uploads Parquet files to
// S3-compatible storage, partitioned by UTC date.
type Writer struct {
	cfg Config

	mu        sync.Mutex
	buckets   map[string][]swapRow
	uploader  *s3manager.Uploader
	lastFlush time.Time
}

type swapRow struct {
	Slot          uint64 `parquet:"name=slot,type=INT64"`
	IndexInSlot   int32  `parquet:"name=idx_in_slot,type=INT32"`
	IndexInTx     int32  `parquet:"name=idx_in_tx,type=INT32"`
	InnerGroup    int32  `parquet:"name=inner_group,type=INT32"`
	Signature     string `parquet:"name=sig,type=BYTE_ARRAY,convertedtype=UTF8"`
	WasSuccessful bool   `parquet:"name=success,type=BOOLEAN"`
	MintIn        string `parquet:"name=mint_in,type=BYTE_ARRAY,convertedtype=UTF8"`
	MintOut       string `parquet:"name=mint_out,type=BYTE_ARRAY,convertedtype=UTF8"`
	AmountIn      uint64 `parquet:"name=amount_in,type=INT64"`
	AmountOut     uint64 `parquet:"name=amount_out,type=INT64"`
	LimitAmount   uint64 `parquet:"name=limit_amount,type=INT64"`
	LimitSide     string `parquet:"name=limit_side,type=BYTE_ARRAY,convertedtype=UTF8"`
	PostBalIn     uint64 `parquet:"name=post_balance_in,type=INT64"`
	PostBalOut    uint64 `parquet:"name=post_balance_out,type=INT64"`
}

// NewWriter validates configuration and prepares a Writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrWriterDisabled
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg := &aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return &Writer{
		cfg:       cfg,
		buckets:   make(map[string][]swapRow),
		uploader:  s3manager.NewUploader(sess),
		lastFlush: time.Now(),
	}, nil
}

func (w *Writer) AppendSwap(ctx context.Context, swap *ray.Swap) error {
	if swap == nil {
		return errors.New("nil swap")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	row := swapRow{
		Slot:          swap.Slot,
		IndexInSlot:   int32(swap.IndexInSlot),
		IndexInTx:     int32(swap.IndexInTx),
		InnerGroup:    int32(swap.InnerGroup),
		Signature:     swap.Signature,
		WasSuccessful: swap.WasSuccessful,
		MintIn:        swap.MintIn,
		MintOut:       swap.MintOut,
		AmountIn:      swap.AmountIn,
		AmountOut:     swap.AmountOut,
		LimitAmount:   swap.LimitAmount,
		LimitSide:     string(swap.LimitSide),
		PostBalIn:     swap.PostPoolBalanceMintIn,
		PostBalOut:    swap.PostPoolBalanceMintOut,
	}

	date := time.Now().UTC().Format("2006-01-02")
	bucket := append(w.buckets[date], row)
	w.buckets[date] = bucket

	if len(bucket) >= w.cfg.BatchRows || time.Since(w.lastFlush) >= w.cfg.FlushInterval {
		return w.flushLocked(ctx)
	}
	return nil
}

func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *Writer) Close() error {
	return w.Flush(context.Background())
}

func (w *Writer) flushLocked(ctx context.Context) error {
	if len(w.buckets) == 0 {
		return nil
	}

	for date, rows := range w.buckets {
		if len(rows) == 0 {
			continue
		}
		if err := w.writeBucket(ctx, date, rows); err != nil {
			return err
		}
		w.buckets[date] = w.buckets[date][:0]
	}
	w.lastFlush = time.Now()
	return nil
}

func (w *Writer) writeBucket(ctx context.Context, date string, rows []swapRow) error {
	buf := bytes.NewBuffer(nil)

	writer := parquet.NewGenericWriter[swapRow](buf, parquet.Compression(&snappy.Codec{}))
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	key := w.objectKey(date)

	_, err := w.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(w.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("upload parquet to s3: %w", err)
	}
	return nil
}

func (w *Writer) objectKey(date string) string {
	prefix := strings.TrimSuffix(w.cfg.Prefix, "/")
	filename := fmt.Sprintf("swaps-%d.parquet", time.Now().UnixNano())
	return filepath.Join(prefix, fmt.Sprintf("date=%s", date), filename)
}
