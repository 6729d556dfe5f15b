package metrics

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	namespace                = "TravelGuide/API"
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
	environmentProduction    = "production"
)

// putMetricDataAPI is the part of the CloudWatch client we use
type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      putMetricDataAPI
	enabled     bool
	environment string
}

// NewClient creates a new CloudWatch metrics client
func NewClient(ctx context.Context, environment string) (*Client, error) {
	// Only enable in production
	if environment != environmentProduction {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false}, nil
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)
	return &Client{
		client:      cloudwatch.NewFromConfig(cfg),
		enabled:     true,
		environment: environment,
	}, nil
}

// Enabled reports whether metrics are sent
func (m *Client) Enabled() bool {
	return m.enabled
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(_ context.Context, endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	metricName := "APIRequests"
	if statusCode >= httpStatusServerError {
		metricName = "APIErrors"
	}
	dimensions := m.dimensions("Endpoint", endpoint)
	m.send(
		datum(metricName, 1, types.StandardUnitCount, dimensions),
		datum("APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions),
	)
}

// RecordModelAttempt records one attempt of a fallback chain
func (m *Client) RecordModelAttempt(_ context.Context, stage, model string, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	metricName := "ModelAttempts"
	if !success {
		metricName = "ModelFailures"
	}
	dimensions := m.dimensions("Stage", stage, "Model", model)
	m.send(
		datum(metricName, 1, types.StandardUnitCount, dimensions),
		datum("ModelLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions),
	)
}

// RecordTokenUsage records token usage of the successful itinerary model
func (m *Client) RecordTokenUsage(_ context.Context, model string, inputTokens, outputTokens, totalTokens int) {
	if !m.enabled {
		return
	}

	dimensions := m.dimensions("Model", model)
	m.send(
		datum("Tokens/Input", float64(inputTokens), types.StandardUnitCount, dimensions),
		datum("Tokens/Output", float64(outputTokens), types.StandardUnitCount, dimensions),
		datum("Tokens/Total", float64(totalTokens), types.StandardUnitCount, dimensions),
	)
}

// RecordGeneration records a whole pipeline run
func (m *Client) RecordGeneration(_ context.Context, duration time.Duration, success bool, fallbackDepth int) {
	if !m.enabled {
		return
	}

	dimensions := m.dimensions("Success", strconv.FormatBool(success))
	m.send(
		datum("GenerationDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions),
		datum("FallbackDepth", float64(fallbackDepth), types.StandardUnitCount, dimensions),
	)
}

// RecordImages records how many images were embedded and omitted
func (m *Client) RecordImages(_ context.Context, generated, omitted int) {
	if !m.enabled {
		return
	}

	dimensions := m.dimensions()
	m.send(
		datum("ImagesGenerated", float64(generated), types.StandardUnitCount, dimensions),
		datum("ImagesOmitted", float64(omitted), types.StandardUnitCount, dimensions),
	)
}

// dimensions builds name/value pairs plus the Environment dimension
func (m *Client) dimensions(pairs ...string) []types.Dimension {
	dims := make([]types.Dimension, 0, len(pairs)/2+1)
	for i := 0; i+1 < len(pairs); i += 2 {
		dims = append(dims, types.Dimension{Name: aws.String(pairs[i]), Value: aws.String(pairs[i+1])})
	}
	return append(dims, types.Dimension{Name: aws.String("Environment"), Value: aws.String(m.environment)})
}

func datum(name string, value float64, unit types.StandardUnit, dimensions []types.Dimension) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(time.Now()),
		Dimensions: dimensions,
	}
}

// send publishes in the background so requests never wait on CloudWatch
func (m *Client) send(data ...types.MetricDatum) {
	go func() {
		if err := m.putMetrics(data); err != nil {
			log.Printf("Failed to record %d metric(s): %v", len(data), err)
		}
	}()
}

// putMetrics sends metrics to CloudWatch
func (m *Client) putMetrics(data []types.MetricDatum) error {
	if !m.enabled || m.client == nil {
		return nil
	}

	timeout := time.Duration(cloudwatchTimeoutSeconds) * time.Second
	cwCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	})
	return err
}
