package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/documentpacker/internal/gcp"
	"github.com/Lllllllleong/documentpacker/internal/hints"
	"github.com/Lllllllleong/documentpacker/internal/kind"
	"github.com/Lllllllleong/documentpacker/internal/models"
	"github.com/Lllllllleong/documentpacker/internal/ocr"
	"github.com/Lllllllleong/documentpacker/internal/pack"
	"github.com/Lllllllleong/documentpacker/internal/redact"
	"github.com/Lllllllleong/documentpacker/internal/template"
)

// BatchSuffix marks request objects picked up by the batch trigger.
const BatchSuffix = ".batch.json"

// OutputPrefix is where published archives and manifests are written.
const OutputPrefix = "packs"

const downloadConcurrency = 8

type PackerConfig struct {
	ProjectID            string
	ArchiveBucket        string
	CollectionName       string
	VertexRegion         string
	WorkflowLocation     string
	RecompressWorkflowID string
	TesseractLang        string
	DefaultTemplate      string
	OCREnabled           bool
	AIEnabled            bool
	RedactDefault        bool
}

// LoadPackerConfig reads the packer configuration from the environment.
func LoadPackerConfig() (PackerConfig, error) {
	config := PackerConfig{
		ProjectID:            gcp.GetEnv("PROJECT_ID", ""),
		ArchiveBucket:        gcp.GetEnv("PACKED_ARCHIVE_BUCKET", ""),
		CollectionName:       gcp.GetEnv("FIRESTORE_COLLECTION", "packs"),
		VertexRegion:         gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		WorkflowLocation:     gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		RecompressWorkflowID: gcp.GetEnv("RECOMPRESS_WORKFLOW_ID", ""),
		TesseractLang:        gcp.GetEnv("TESSERACT_LANG", "eng"),
		DefaultTemplate:      gcp.GetEnv("DEFAULT_TEMPLATE", template.DefaultTemplate),
		OCREnabled:           gcp.GetEnvBool("OCR_ENABLED", false),
		AIEnabled:            gcp.GetEnvBool("AI_ENABLED", false),
		RedactDefault:        gcp.GetEnvBool("REDACT_DEFAULT", false),
	}
	if config.ProjectID == "" {
		return config, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if config.ArchiveBucket == "" {
		return config, fmt.Errorf("PACKED_ARCHIVE_BUCKET environment variable must be set")
	}
	return config, nil
}

type PackerFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	vertexClient     *gcp.VertexClient
	records          *gcp.PackRecords
	orchestrator     *pack.Orchestrator
	inferrer         *hints.Inferrer
	config           PackerConfig
}

// GCSEvent is the payload of a storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewPacker(ctx context.Context) (*PackerFunction, error) {
	config, err := LoadPackerConfig()
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &PackerFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		records:         gcp.NewPackRecords(firestoreClient, config.CollectionName),
		config:          config,
	}
	if config.RecompressWorkflowID != "" {
		f.executionsClient, err = executions.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	var suggester hints.Suggester
	if config.AIEnabled {
		f.vertexClient, err = gcp.NewVertexClient(ctx, config.ProjectID, config.VertexRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		suggester = f.vertexClient
	}

	logger := slog.Default()
	recognizer := ocr.NewTesseract(ocr.TesseractConfig{Languages: strings.Split(config.TesseractLang, "+")}, logger)
	f.orchestrator = pack.New(redact.New(recognizer, logger), pack.WithLogger(logger))
	f.inferrer = hints.New(recognizer, suggester, hints.WithLogger(logger))

	slog.Info("Document packer logic initialized.",
		"archiveBucket", config.ArchiveBucket,
		"ocrEnabled", config.OCREnabled,
		"aiEnabled", config.AIEnabled,
		"recompressWorkflowId", config.RecompressWorkflowID,
	)
	return f, nil
}

// Process packs the requested objects and publishes the archive and manifest.
// Errors wrapping models.ErrInvalidInput are caller errors.
func (f *PackerFunction) Process(ctx context.Context, req *models.PackRequest) (*models.PackResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	tmpl := req.Template
	if tmpl == "" {
		tmpl = f.config.DefaultTemplate
	}
	opts := models.PackOptions{
		Redact:     resolveRedact(req.Redact, f.config.RedactDefault),
		OCREnabled: f.config.OCREnabled,
		AIEnabled:  f.config.AIEnabled,
	}
	logCtx := slog.With("gcsBucket", req.Bucket, "prefix", req.Prefix, "redact", opts.Redact)
	logCtx.Info("Processing pack request.")

	inputs, err := f.resolveInputs(ctx, req)
	if err != nil {
		logCtx.Error("Failed to resolve inputs", "error", err)
		return nil, err
	}
	items, err := f.download(ctx, req.Bucket, inputs)
	if err != nil {
		logCtx.Error("Failed to download inputs", "error", err)
		return nil, err
	}

	batchHash := BatchHash(items, tmpl, opts.Redact)
	logCtx = logCtx.With("batchHash", batchHash, "itemCount", len(items))

	existing, err := f.records.FindPacked(ctx, batchHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return nil, err
	}
	if existing != nil {
		logCtx.Info("Identical batch already packed. Reusing.", "existingPackId", existing.Ref.ID)
		return reusedResponse(existing)
	}

	docRef, err := f.records.Create(ctx, models.PackRecord{
		BatchHash: batchHash,
		Template:  tmpl,
		Redact:    opts.Redact,
		Status:    gcp.StatusPacking,
		ItemCount: len(items),
		CreatedAt: time.Now(),
	})
	if err != nil {
		logCtx.Error("Failed to create pack record", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("packId", docRef.ID)

	for _, it := range items {
		hints.Apply(it, f.inferrer.Infer(ctx, it, opts))
	}

	res, err := f.orchestrator.Pack(ctx, items, tmpl, func(pct int) {
		logCtx.Debug("Pack progress.", "percent", pct)
	}, opts)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to pack documents", err)
	}
	models.ApplyUpdates(items, res.Updates)

	archiveObject := path.Join(OutputPrefix, docRef.ID, ArchiveName(time.Now()))
	manifestObject := path.Join(OutputPrefix, docRef.ID, pack.ManifestName)
	bucket := f.storageClient.Bucket(f.config.ArchiveBucket)
	if err := gcp.UploadWithRetry(ctx, bucket, archiveObject, "application/zip", res.Archive); err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to upload archive", err)
	}
	if err := gcp.SaveToGCSAtomically(ctx, bucket, manifestObject, "text/plain; charset=utf-8", []byte(res.Manifest)); err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to save manifest", err)
	}

	archiveURI := gcp.URI(f.config.ArchiveBucket, archiveObject)
	manifestURI := gcp.URI(f.config.ArchiveBucket, manifestObject)
	if err := f.records.Complete(ctx, docRef, archiveURI, manifestURI, res.Updates); err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to record pack outputs", err)
	}
	logCtx.Info("Pack published.", "archiveUri", archiveURI)

	f.triggerRecompression(ctx, logCtx, docRef.ID, archiveURI, res.Updates)

	return &models.PackResponse{
		Status:      gcp.StatusPacked,
		PackID:      docRef.ID,
		ArchiveURI:  archiveURI,
		ManifestURI: manifestURI,
		Manifest:    res.Manifest,
		Items:       res.Updates,
	}, nil
}

// ProcessBatchEvent handles a finalized request object. Objects without
// BatchSuffix are ignored.
func (f *PackerFunction) ProcessBatchEvent(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !IsBatchObject(e.Name) {
		logCtx.Info("Not a batch request object. Skipping.")
		return nil
	}
	obj, err := gcp.ReadObject(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read batch request", "error", err)
		return err
	}
	req, err := DecodeBatchRequest(obj.Data, e.Bucket)
	if err != nil {
		logCtx.Error("Failed to decode batch request", "error", err)
		return err
	}
	resp, err := f.Process(ctx, req)
	if err != nil {
		return err
	}
	logCtx.Info("Batch request packed.", "packId", resp.PackID, "reused", resp.Reused)
	return nil
}

func (f *PackerFunction) resolveInputs(ctx context.Context, req *models.PackRequest) ([]models.PackInput, error) {
	if len(req.Inputs) > 0 {
		return req.Inputs, nil
	}
	names, err := gcp.ListObjects(ctx, f.storageClient, req.Bucket, req.Prefix)
	if err != nil {
		return nil, err
	}
	var inputs []models.PackInput
	for _, n := range PackableObjects(names) {
		inputs = append(inputs, models.PackInput{Object: n})
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no objects under gs://%s/%s", models.ErrInvalidInput, req.Bucket, req.Prefix)
	}
	return inputs, nil
}

// download fetches every input concurrently, keeping input order.
func (f *PackerFunction) download(ctx context.Context, bucket string, inputs []models.PackInput) ([]*models.DocumentItem, error) {
	items := make([]*models.DocumentItem, len(inputs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(downloadConcurrency)

	for i, in := range inputs {
		eg.Go(func() error {
			obj, err := gcp.ReadObject(gctx, f.storageClient, bucket, in.Object)
			if err != nil {
				return fmt.Errorf("input %d: %w", i+1, err)
			}
			mimeType := in.MIMEType
			if mimeType == "" {
				mimeType = obj.ContentType
			}
			items[i] = kind.NewItem(uuid.NewString(), path.Base(in.Object), mimeType, obj.Data, models.FieldMap(in.Fields).Clone())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (f *PackerFunction) triggerRecompression(ctx context.Context, logCtx *slog.Logger, packID, archiveURI string, updates []models.ItemUpdate) {
	names := RecommendedItems(updates)
	if len(names) == 0 || f.executionsClient == nil {
		return
	}
	parent := gcp.WorkflowParent(f.config.ProjectID, f.config.WorkflowLocation, f.config.RecompressWorkflowID)
	exec, err := gcp.TriggerWorkflow(ctx, f.executionsClient, parent, models.RecompressPayload{
		PackID:     packID,
		ArchiveURI: archiveURI,
		Items:      names,
	})
	if err != nil {
		logCtx.Warn("Recompression hand-off failed; pack is still valid.", "error", err)
		return
	}
	logCtx.Info("Recompression workflow triggered.", "execution", exec, "items", len(names))
}

func (f *PackerFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.records.UpdateStatus(ctx, docRef, gcp.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func validateRequest(req *models.PackRequest) error {
	if req == nil || req.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", models.ErrInvalidInput)
	}
	if len(req.Inputs) == 0 && req.Prefix == "" {
		return fmt.Errorf("%w: inputs or prefix is required", models.ErrInvalidInput)
	}
	for i, in := range req.Inputs {
		if in.Object == "" {
			return fmt.Errorf("%w: input %d has no object", models.ErrInvalidInput, i+1)
		}
	}
	return nil
}

func resolveRedact(requested *bool, fallback bool) bool {
	if requested != nil {
		return *requested
	}
	return fallback
}

// BatchHash identifies a batch by its input bytes, names, template and
// redact flag.
func BatchHash(items []*models.DocumentItem, tmpl string, redactOn bool) string {
	h := sha256.New()
	for _, it := range items {
		sum := sha256.Sum256(it.Data)
		fmt.Fprintf(h, "%s\x00%s\n", it.Name, hex.EncodeToString(sum[:]))
	}
	fmt.Fprintf(h, "%s\x00%s", tmpl, strconv.FormatBool(redactOn))
	return hex.EncodeToString(h.Sum(nil))
}

// RecommendedItems lists the rendered names flagged for server recompression.
func RecommendedItems(updates []models.ItemUpdate) []string {
	var out []string
	for _, u := range updates {
		if u.ServerRecommended {
			out = append(out, u.RenderedName)
		}
	}
	return out
}

// ArchiveName is the download name of an archive packed at t.
func ArchiveName(t time.Time) string {
	return "DocPackr_" + t.UTC().Format("2006-01-02_1504") + ".zip"
}

// PackableObjects drops listed objects that are never inputs: batch requests,
// manifests, zip archives and anything under OutputPrefix.
func PackableObjects(names []string) []string {
	var out []string
	for _, n := range names {
		switch {
		case IsBatchObject(n),
			path.Base(n) == pack.ManifestName,
			strings.HasSuffix(strings.ToLower(n), ".zip"),
			strings.HasPrefix(n, OutputPrefix+"/"),
			strings.Contains(n, "/"+OutputPrefix+"/"):
			continue
		}
		out = append(out, n)
	}
	return out
}

func IsBatchObject(name string) bool {
	return strings.HasSuffix(name, BatchSuffix)
}

// DecodeBatchRequest parses a request object. An empty bucket defaults to the
// bucket the request object lives in.
func DecodeBatchRequest(data []byte, eventBucket string) (*models.PackRequest, error) {
	var req models.PackRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: batch request is not valid JSON: %v", models.ErrInvalidInput, err)
	}
	if req.Bucket == "" {
		req.Bucket = eventBucket
	}
	return &req, nil
}

func reusedResponse(snap *firestore.DocumentSnapshot) (*models.PackResponse, error) {
	var rec models.PackRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode existing pack record: %w", err)
	}
	return &models.PackResponse{
		Status:      rec.Status,
		PackID:      snap.Ref.ID,
		ArchiveURI:  rec.ArchiveURI,
		ManifestURI: rec.ManifestURI,
		Items:       rec.Items,
		Reused:      true,
	}, nil
}

// IsCallerError reports whether err was caused by the request itself: bad
// fields, missing objects, or inputs that cannot be decoded.
func IsCallerError(err error) bool {
	if errors.Is(err, models.ErrInvalidInput) || errors.Is(err, storage.ErrObjectNotExist) {
		return true
	}
	var itemErr *models.ItemError
	return errors.As(err, &itemErr) && errors.Is(itemErr, models.ErrDecodeFailure)
}
