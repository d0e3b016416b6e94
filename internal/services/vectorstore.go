package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"alfredoptarigan/resume-matcher/internal/apperrors"
	"alfredoptarigan/resume-matcher/internal/models"
)

const (
	docTypeJob    = "job"
	docTypeResume = "resume"
)

// VectorStore mirrors stored embeddings into qdrant so candidate discovery
// can run as a vector search instead of a full table scan.
type VectorStore interface {
	InitCollection(ctx context.Context) error
	UpsertJobVector(ctx context.Context, job *models.Job) error
	UpsertResumeVector(ctx context.Context, resume *models.Resume) error
	SearchSimilarResumes(ctx context.Context, queryVector []float32, limit int) ([]models.SimilarResume, error)
	DeleteVector(ctx context.Context, docID string) error
}

type vectorStore struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

func NewVectorStore(urlStr, apiKey, collectionName string, dimension int) (VectorStore, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "invalid qdrant URL", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// gRPC port, not the HTTP one
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfiguration, "failed to create qdrant client", err)
	}

	return &vectorStore{
		client:         client,
		collectionName: collectionName,
		vectorSize:     uint64(dimension),
	}, nil
}

// InitCollection implements VectorStore.
func (v *vectorStore) InitCollection(ctx context.Context) error {
	exists, err := v.client.CollectionExists(ctx, v.collectionName)
	if err != nil {
		return apperrors.Wrap(apperrors.KindExternalService, "failed to check qdrant collection", err)
	}
	if exists {
		return nil
	}

	err = v.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: v.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     v.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindExternalService, "failed to create qdrant collection", err)
	}
	return nil
}

// UpsertJobVector implements VectorStore.
func (v *vectorStore) UpsertJobVector(ctx context.Context, job *models.Job) error {
	if !job.HasEmbedding() {
		return apperrors.New(apperrors.KindValidation, "job has no embedding to index").
			With("job_id", job.ID.String())
	}
	return v.upsert(ctx, job.ID, docTypeJob, job.Title, job.Embedding)
}

// UpsertResumeVector implements VectorStore.
func (v *vectorStore) UpsertResumeVector(ctx context.Context, resume *models.Resume) error {
	if !resume.HasEmbedding() {
		return apperrors.New(apperrors.KindValidation, "resume has no embedding to index").
			With("resume_id", resume.ID.String())
	}
	return v.upsert(ctx, resume.ID, docTypeResume, resume.CandidateName, resume.Embedding)
}

// upsert keys points by the entity uuid so re-indexing replaces in place.
func (v *vectorStore) upsert(ctx context.Context, docID uuid.UUID, docType, name string, embedding []float32) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(docID.String()),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]interface{}{
			"doc_id":   docID.String(),
			"doc_type": docType,
			"name":     name,
		}),
	}

	_, err := v.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collectionName,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindExternalService,
			fmt.Sprintf("failed to upsert %s vector", docType), err)
	}
	return nil
}

// SearchSimilarResumes implements VectorStore.
func (v *vectorStore) SearchSimilarResumes(ctx context.Context, queryVector []float32, limit int) ([]models.SimilarResume, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("doc_type", docTypeResume),
		},
	}

	points, err := v.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collectionName,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindExternalService, "failed to search similar resumes", err)
	}

	results := make([]models.SimilarResume, 0, len(points))
	for _, point := range points {
		hit := models.SimilarResume{Score: point.Score}
		if docID, ok := point.Payload["doc_id"]; ok {
			if val, ok := docID.GetKind().(*qdrant.Value_StringValue); ok {
				hit.ResumeID = val.StringValue
			}
		}
		if name, ok := point.Payload["name"]; ok {
			if val, ok := name.GetKind().(*qdrant.Value_StringValue); ok {
				hit.CandidateName = val.StringValue
			}
		}
		results = append(results, hit)
	}
	return results, nil
}

// DeleteVector implements VectorStore.
func (v *vectorStore) DeleteVector(ctx context.Context, docID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("doc_id", docID),
		},
	}

	_, err := v.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: v.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	if err != nil {
		return apperrors.Wrap(apperrors.KindExternalService, "failed to delete vector", err)
	}
	return nil
}
