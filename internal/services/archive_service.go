package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"route-recon/internal/config"
)

const archiveQueueSize = 64

type archiveJob struct {
	key  string
	body []byte
}

type Snapshot struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ArchiveService uploads a JSON copy of each saved record to an S3
// compatible bucket from a small worker pool. Uploads never block a save;
// when the queue is full the snapshot is dropped and logged.
type ArchiveService struct {
	client *s3.Client
	bucket string
	jobs   chan archiveJob
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewArchiveService(ctx context.Context, cfg config.ArchiveConfig) (*ArchiveService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure archive client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
		jobs:   make(chan archiveJob, archiveQueueSize),
		now:    time.Now,
	}, nil
}

// Start launches the upload workers. They exit once Stop closes the queue.
func (a *ArchiveService) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for job := range a.jobs {
				a.upload(job)
			}
		}()
	}
}

// Stop drains pending uploads.
func (a *ArchiveService) Stop() {
	close(a.jobs)
	a.wg.Wait()
}

func archivePrefix(module, route, date string) string {
	return fmt.Sprintf("%s/%s/%s/", module, url.PathEscape(route), date)
}

func (a *ArchiveService) Archive(module, route, date string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Archive] Failed to encode %s snapshot: %v", module, err)
		return
	}
	key := fmt.Sprintf("%s%d.json", archivePrefix(module, route, date), a.now().UnixMilli())

	select {
	case a.jobs <- archiveJob{key: key, body: body}:
	default:
		log.Printf("[Archive] Queue full, dropping %s", key)
	}
}

func (a *ArchiveService) upload(job archiveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(job.key),
		Body:        bytes.NewReader(job.body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Printf("[Archive] Failed to upload %s: %v", job.key, err)
		return
	}
	log.Printf("[Archive] Uploaded %s (%d bytes)", job.key, len(job.body))
}

// Snapshots lists archived copies of a route/date, newest first.
func (a *ArchiveService) Snapshots(ctx context.Context, module, route, date string) ([]Snapshot, error) {
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(archivePrefix(module, route, date)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snaps := make([]Snapshot, 0, len(out.Contents))
	for _, obj := range out.Contents {
		s := Snapshot{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.LastModified != nil {
			s.LastModified = *obj.LastModified
		}
		snaps = append(snaps, s)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key > snaps[j].Key })
	return snaps, nil
}
