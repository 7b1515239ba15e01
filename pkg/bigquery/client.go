package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/stockhold-backend/pkg/config"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errNotInitialized = errors.New("bigquery client not initialized")

// TableSpec describes a table the client depends on. Schema and the
// partitioning fields are only used when the table has to be created.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
	ClusterFields  []string
}

// Client streams rows into one dataset and keeps track of the tables it needs.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []TableSpec
	create  bool
}

// NewClient connects to BigQuery and makes sure the dataset and every table
// in specs exist. Missing tables are created only when cfg.CreateTables is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errors.New("bigquery dataset is required")
	}
	tables, err := normalizeSpecs(specs)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, projectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(datasetID), tables: tables, create: cfg.CreateTables}

	created, err := c.prepare(ctx)
	if err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset":        datasetID,
			"tables":         tableNames(tables),
			"tables_created": created,
		}), "bigquery client initialized")
	}
	return c, nil
}

func normalizeSpecs(specs []TableSpec) ([]TableSpec, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one bigquery table is required")
	}
	out := make([]TableSpec, 0, len(specs))
	for _, spec := range specs {
		spec.Name = strings.TrimSpace(spec.Name)
		if spec.Name == "" {
			return nil, errors.New("bigquery table name is required")
		}
		out = append(out, spec)
	}
	return out, nil
}

func tableNames(specs []TableSpec) []string {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names
}

// credentials prefers inline JSON over a credentials file and otherwise
// leaves discovery to Application Default Credentials.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// prepare checks the dataset and tables, creating missing tables when
// allowed, and returns the names of the tables it created.
func (c *Client) prepare(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return nil, lookupError("dataset", c.dataset.DatasetID, err)
	}

	var created []string
	for _, spec := range c.tables {
		table := c.dataset.Table(spec.Name)
		_, err := table.Metadata(ctx)
		switch {
		case err == nil:
			continue
		case isNotFound(err) && c.create && len(spec.Schema) > 0:
			if err := table.Create(ctx, tableMetadata(spec)); err != nil && !isAlreadyExists(err) {
				return created, fmt.Errorf("creating table %q: %w", spec.Name, err)
			}
			created = append(created, spec.Name)
		default:
			return created, lookupError("table", spec.Name, err)
		}
	}
	return created, nil
}

func tableMetadata(spec TableSpec) *bigquery.TableMetadata {
	md := &bigquery.TableMetadata{Schema: spec.Schema}
	if spec.PartitionField != "" {
		md.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.PartitionField}
	}
	if len(spec.ClusterFields) > 0 {
		md.Clustering = &bigquery.Clustering{Fields: spec.ClusterFields}
	}
	return md
}

// Ping re-reads the dataset and table metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return lookupError("dataset", c.dataset.DatasetID, err)
	}
	for _, spec := range c.tables {
		if _, err := c.dataset.Table(spec.Name).Metadata(ctx); err != nil {
			return lookupError("table", spec.Name, err)
		}
	}
	return nil
}

// InsertRows streams rows into table with the legacy insertAll API. Rows
// that implement bigquery.ValueSaver supply their own insert ids.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errors.New("bigquery table name is required")
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

// Close releases the BigQuery client.
func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func lookupError(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
