package analytics

import (
	"context"
	"fmt"
	"time"
)

// AnalyticsService provides a complete analytics solution for the progress engine
type AnalyticsService struct {
	metrics    *ComprehensiveMetrics
	aggregator *AggregationEngine
	publisher  *StreamPublisher
	dashboard  *DashboardManager
	exporter   *ExportManager
}

// NewAnalyticsService creates a fully configured analytics service
func NewAnalyticsService() *AnalyticsService {
	metrics := NewComprehensiveMetrics()
	aggregator := NewAggregationEngine(metrics, time.Hour)
	publisher := NewStreamPublisher(metrics)
	dashboard := NewDashboardManager(publisher, metrics, 100)

	// Default console exporter for development
	exporter := NewExportManager(NewConsoleExporter("[learning-analytics]"))

	return &AnalyticsService{
		metrics:    metrics,
		aggregator: aggregator,
		publisher:  publisher,
		dashboard:  dashboard,
		exporter:   exporter,
	}
}

// GetHook returns the hook to wire into the engine's event bus.
// The publisher forwards every event to the metrics collector before
// streaming it, so a single subscription covers both.
func (as *AnalyticsService) GetHook() Hook {
	return as.publisher
}

// Start begins background aggregation and export
func (as *AnalyticsService) Start(ctx context.Context) {
	go as.aggregator.Start(ctx)
	go as.startPeriodicExport(ctx)
}

func (as *AnalyticsService) startPeriodicExport(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data := as.aggregator.GetAllAggregatedData(PeriodDaily)
			if len(data) > 0 {
				if err := as.exporter.ExportData(ctx, data); err != nil {
					fmt.Printf("Analytics export failed: %v\n", err)
				}
			}
		}
	}
}

// GetRealtimeStats returns current real-time statistics
func (as *AnalyticsService) GetRealtimeStats() map[string]interface{} {
	return as.publisher.GetRealtimeStats()
}

// GetDashboardData returns current dashboard data
func (as *AnalyticsService) GetDashboardData() *DashboardData {
	return as.dashboard.GetDashboardData()
}

// GetAggregatedData returns aggregated data for a period
func (as *AnalyticsService) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	return as.aggregator.GetAggregatedData(period, key)
}

// ForceAggregation triggers immediate aggregation (useful for testing)
func (as *AnalyticsService) ForceAggregation() error {
	return as.aggregator.AggregateNow()
}

// SubscribeToRealtime adds a real-time subscriber
func (as *AnalyticsService) SubscribeToRealtime(id string, subscriber StreamSubscriber) {
	as.publisher.Subscribe(id, subscriber)
}

// UnsubscribeFromRealtime removes a real-time subscriber
func (as *AnalyticsService) UnsubscribeFromRealtime(id string) {
	as.publisher.Unsubscribe(id)
}

// Close shuts down the analytics service
func (as *AnalyticsService) Close() error {
	if as.dashboard != nil {
		as.dashboard.Close()
	}
	return as.exporter.Close()
}

// AnalyticsConfig holds configuration for the analytics service
type AnalyticsConfig struct {
	AggregationInterval time.Duration
	ExportInterval      time.Duration
	DashboardMaxEvents  int
	Exporters           []ExporterConfig
}

// ExporterConfig configures a single exporter
type ExporterConfig struct {
	Type     string // "http", "segment", "console"
	Endpoint string
	APIKey   string
	Prefix   string
}

// NewAnalyticsServiceWithConfig creates an analytics service with custom configuration
func NewAnalyticsServiceWithConfig(config AnalyticsConfig) *AnalyticsService {
	metrics := NewComprehensiveMetrics()

	interval := config.AggregationInterval
	if interval <= 0 {
		interval = time.Hour
	}
	aggregator := NewAggregationEngine(metrics, interval)
	publisher := NewStreamPublisher(metrics)

	maxEvents := config.DashboardMaxEvents
	if maxEvents <= 0 {
		maxEvents = 100
	}
	dashboard := NewDashboardManager(publisher, metrics, maxEvents)

	exporters := make([]Exporter, 0, len(config.Exporters))
	for _, ec := range config.Exporters {
		switch ec.Type {
		case "http":
			exporters = append(exporters, NewHTTPExporter(ec.Endpoint, ec.APIKey, 50))
		case "segment":
			exporters = append(exporters, NewSegmentExporter(ec.APIKey))
		case "console":
			exporters = append(exporters, NewConsoleExporter(ec.Prefix))
		}
	}
	if len(exporters) == 0 {
		exporters = append(exporters, NewConsoleExporter("[learning-analytics]"))
	}

	return &AnalyticsService{
		metrics:    metrics,
		aggregator: aggregator,
		publisher:  publisher,
		dashboard:  dashboard,
		exporter:   NewExportManager(exporters...),
	}
}

// CreateAnalyticsServiceForTesting creates a service suitable for tests:
// short intervals, in-memory only, no exporters that reach the network.
func CreateAnalyticsServiceForTesting() *AnalyticsService {
	metrics := NewComprehensiveMetrics()
	aggregator := NewAggregationEngine(metrics, time.Minute)
	publisher := NewStreamPublisher(metrics)
	dashboard := NewDashboardManager(publisher, metrics, 10)
	exporter := NewExportManager()

	return &AnalyticsService{
		metrics:    metrics,
		aggregator: aggregator,
		publisher:  publisher,
		dashboard:  dashboard,
		exporter:   exporter,
	}
}
