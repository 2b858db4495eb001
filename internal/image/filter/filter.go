package filter

import (
	"bytes"
	"context"
	"expvar"
	"fmt"
	"math/rand"
	"time"

	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/imgbuf"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/queue"
	"github.com/polybot/polybot/internal/storage"
	"github.com/polybot/polybot/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Processor applies filters to photos on a fixed number of workers
type Processor struct {
	queue  *queue.Queue
	tracer *tracing.Tracer
}

var (
	queueSize       = expvar.NewInt("gauge_image_processor_queue_size")
	processedImages = expvar.NewMap("counter_labelmap_operation_image_processor_processed_images")

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polybot_filter_duration_seconds",
		Help:    "Time spent decoding, filtering and encoding a photo.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})
	operationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polybot_filter_errors_total",
		Help: "Photos that could not be processed.",
	}, []string{"operation"})
)

// New initializes a new processor instance. Results are written to storage next to the first source photo.
func New(ctx context.Context, log *logger.Logger, tracer *tracing.Tracer, workers int, cache *image.Cache, storage storage.Provider) (*Processor, error) {
	if workers < 1 {
		return nil, fmt.Errorf("invalid number of workers %d", workers)
	}

	workerQueue := queue.New(ctx, workers, taskProcessor(tracer, cache, storage))
	instance := &Processor{
		queue:  workerQueue,
		tracer: tracer,
	}

	go workerQueue.Run()
	log.Infof("starting filter worker queue with %d workers", workers)

	return instance, nil
}

// ProcessImage runs a task and returns the encoded result
func (p *Processor) ProcessImage(ctx context.Context, task *image.Task) (*image.Result, error) {
	ctx, span := p.tracer.Start(ctx, "filter.ProcessImage")
	defer span.End()
	span.SetAttributes(attribute.String("operation", task.Operation.String()))

	queueSize.Add(1)
	defer queueSize.Add(-1)

	start := time.Now()
	result, err := p.queue.Process(ctx, task)
	if err != nil {
		operationErrors.WithLabelValues(task.Operation.String()).Inc()
		tracing.Fail(span, err)
		return nil, err
	}

	processedImages.Add(task.Operation.String(), 1)
	operationDuration.WithLabelValues(task.Operation.String()).Observe(time.Since(start).Seconds())

	processed, ok := result.(*image.Result)
	if !ok {
		return nil, fmt.Errorf("error getting result")
	}

	return processed, nil
}

func taskProcessor(tracer *tracing.Tracer, cache *image.Cache, storage storage.Provider) func(ctx context.Context, data interface{}) (interface{}, error) {
	return func(ctx context.Context, data interface{}) (interface{}, error) {
		task, ok := data.(*image.Task)
		if !ok {
			return nil, fmt.Errorf("invalid data")
		}

		if len(task.Images) != task.Operation.Images() {
			return nil, fmt.Errorf("%s needs %d photos, got %d", task.Operation, task.Operation.Images(), len(task.Images))
		}

		buffers, err := loadBuffers(ctx, cache, task.Images, task.Operation.Mode())
		if err != nil {
			return nil, err
		}

		_, span := tracer.Start(ctx, "filter.apply")
		err = Apply(task, buffers)
		span.End()
		if err != nil {
			return nil, err
		}

		var out bytes.Buffer
		if err := buffers[0].Encode(&out); err != nil {
			return nil, err
		}

		key := imgbuf.FilteredPath(task.Images[0])
		if err := storage.Put(ctx, key, out.Bytes()); err != nil {
			return nil, fmt.Errorf("error storing result: %w", err)
		}

		return &image.Result{
			Key:  key,
			Data: out.Bytes(),
		}, nil
	}
}

// loadBuffers fetches and decodes the source photos concurrently
func loadBuffers(ctx context.Context, cache *image.Cache, keys []string, mode imgbuf.Mode) ([]*imgbuf.Buffer, error) {
	buffers := make([]*imgbuf.Buffer, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			data, err := cache.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("error getting photo from cache: %w", err)
			}

			buffers[i], err = imgbuf.Decode(bytes.NewReader(data), key, mode)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buffers, nil
}

// Apply runs the task's operation on buffers[0], Concat joins buffers[1] onto it
func Apply(task *image.Task, buffers []*imgbuf.Buffer) error {
	if len(buffers) != task.Operation.Images() {
		return fmt.Errorf("%s needs %d photos, got %d", task.Operation, task.Operation.Images(), len(buffers))
	}

	b := buffers[0]

	switch task.Operation {
	case image.Blur:
		return b.Blur(task.BlurLevel)
	case image.Contour:
		return b.Contour()
	case image.Rotate:
		return b.Rotate()
	case image.Segment:
		return b.Segment(task.Threshold)
	case image.SaltAndPepper:
		var rng *rand.Rand
		if task.Seed != 0 {
			rng = rand.New(rand.NewSource(task.Seed))
		}
		return b.SaltAndPepper(rng, task.SaltProbability, task.PepperProbability)
	case image.Concat:
		return b.Concat(buffers[1], task.Direction)
	default:
		return fmt.Errorf("unknown operation %s", task.Operation)
	}
}
