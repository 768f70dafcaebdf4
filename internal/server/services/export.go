package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	sc "github.com/dmitrijs2005/psm/internal/server/config"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ExportLinkValidity is how long the presigned download link stays usable.
const ExportLinkValidity = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// VaultSnapshot is the exported document. Entry passwords stay encrypted.
type VaultSnapshot struct {
	ExportedAt time.Time       `json:"exportedAt"`
	User       string          `json:"user"`
	Groups     []*models.Group `json:"groups"`
	Entries    []*models.Entry `json:"entries"`
}

// ExportResult points at an uploaded snapshot.
type ExportResult struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// ExportService uploads a snapshot of the caller's vault to S3 compatible
// storage and hands out a short-lived download link.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	logger      logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, cfg *sc.Config, logger logging.Logger) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: m,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Enabled reports whether a bucket is configured.
func (s *ExportService) Enabled() bool {
	return s.config.S3Bucket != ""
}

// StorageKey builds users/<id>/exports/<y>/<m>/<d>/<uuid>.json.
func StorageKey(userID int64, d time.Time) string {
	return fmt.Sprintf("users/%d/exports/%d/%d/%d/%v.json", userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) Export(ctx context.Context, p *auth.Principal) (*ExportResult, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: export is not configured", common.ErrorNotFound)
	}

	snapshot, err := s.snapshot(ctx, p)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("error encoding snapshot: %w", err)
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := StorageKey(p.UserID, snapshot.ExportedAt)

	if _, err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, err
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ExportLinkValidity))
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "vault exported", "user", p.Name, "key", key,
		"groups", len(snapshot.Groups), "entries", len(snapshot.Entries))
	return &ExportResult{Key: key, URL: req.URL, ExpiresAt: snapshot.ExportedAt.Add(ExportLinkValidity)}, nil
}

func (s *ExportService) snapshot(ctx context.Context, p *auth.Principal) (*VaultSnapshot, error) {
	groups, err := s.repomanager.Groups(s.db).ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	list, err := s.repomanager.Entries(s.db).Find(ctx, entries.Query{UserID: p.UserID})
	if err != nil {
		return nil, err
	}
	return &VaultSnapshot{
		ExportedAt: s.now().UTC(),
		User:       p.Name,
		Groups:     groups,
		Entries:    list,
	}, nil
}

func (s *ExportService) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}
