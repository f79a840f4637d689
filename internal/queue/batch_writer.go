package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/smukkama/geofence-server/internal/database"
	"github.com/smukkama/geofence-server/internal/protocol"
)

// BatchWriter consumes location reports from Kafka and batch-writes them to
// the database. Offsets are committed per message after a successful insert,
// so a crash replays at most the uncommitted tail.
type BatchWriter struct {
	consumer      *Consumer
	db            *database.DB
	batchSize     int
	flushInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer *Consumer, db *database.DB, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		consumer:      consumer,
		db:            db,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to database
func (bw *BatchWriter) Start(ctx context.Context) error {
	bw.wg.Add(1)
	go bw.run(ctx)
	return nil
}

// Stop stops the batch writer gracefully
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, 10)
	go func() {
		for {
			msg, err := bw.consumer.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fmt.Printf("Consumer error: %v\n", err)
				continue
			}
			select {
			case msgChan <- msg:
			case <-bw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				bw.flush(context.Background(), batch)
			}
			return

		case <-bw.stopCh:
			// Flush remaining batch before stopping
			if len(batch) > 0 {
				bw.flush(ctx, batch)
			}
			return

		case <-ticker.C:
			if len(batch) > 0 {
				fmt.Printf("Flush interval reached (%d messages), flushing...\n", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgChan:
			batch = append(batch, msg)

			if len(batch) >= bw.batchSize {
				fmt.Printf("Batch full (%d messages), flushing...\n", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	successCount := 0
	for _, msg := range batch {
		if err := bw.processMessage(ctx, msg); err != nil {
			fmt.Printf("Failed to process message: %v\n", err)
			continue
		}
		successCount++

		// Commit offset after successful processing
		if err := bw.consumer.Commit(ctx, msg); err != nil {
			fmt.Printf("Failed to commit offset: %v\n", err)
		}
	}

	fmt.Printf("Flushed batch of %d locations to database\n", successCount)
}

func (bw *BatchWriter) processMessage(ctx context.Context, msg kafka.Message) error {
	locMsg, err := protocol.DecodeLocationMessage(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	if err := locMsg.Validate(); err != nil {
		return fmt.Errorf("invalid location message: %w", err)
	}

	device, err := bw.db.GetDeviceByDeviceID(ctx, locMsg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}
	if device == nil {
		// Unknown devices are dropped, not retried
		return fmt.Errorf("unknown device %s", locMsg.DeviceID)
	}

	location := &database.Location{
		DeviceID:  device.ID,
		Lat:       locMsg.Latitude,
		Lon:       locMsg.Longitude,
		Altitude:  optionalDecimal(locMsg.Altitude),
		Accuracy:  optionalDecimal(locMsg.Accuracy),
		Speed:     optionalDecimal(locMsg.Speed),
		Heading:   optionalDecimal(locMsg.Heading),
		Timestamp: locMsg.Timestamp,
	}

	if err := bw.db.InsertLocation(ctx, location); err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}

	if err := bw.db.TouchDeviceLastSeen(ctx, device.DeviceID, locMsg.Timestamp); err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	return nil
}

func optionalDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
