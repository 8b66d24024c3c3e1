package app

import (
	"context"
	"fmt"

	"gomdp/domain/core"
	"gomdp/domain/mdp"
	"gomdp/internal"
	"gomdp/models"
	"gomdp/ports"
)

// CatalogService moves models between their wire form and the catalog. It
// owns the hash discipline: a stored payload is verified against its content
// hash on every load, so catalog corruption surfaces as a determinism error
// instead of a silently different model.
type CatalogService struct {
	models ports.ModelRepository
	codec  ports.ModelCodec
	logger *internal.Logger
}

// NewCatalogService creates a catalog service.
func NewCatalogService(models ports.ModelRepository, codec ports.ModelCodec) *CatalogService {
	return &CatalogService{
		models: models,
		codec:  codec,
		logger: internal.DefaultLogger.WithPrefix("[Catalog]"),
	}
}

// ImportModel decodes a wire payload and stores it. The payload is kept
// byte-for-byte as received, so the content hash of the stored model equals
// the hash of the uploaded file.
func (s *CatalogService) ImportModel(ctx context.Context, payload []byte) (*models.ModelRecord, error) {
	m, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model payload: %w", err)
	}

	record := models.NewModelRecord(m, payload)
	if err := s.models.Save(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Imported model %q (%s, hash %s)", record.Name, record.ID, record.Hash.Short())
	return record, nil
}

// StoreModel encodes a finalized model and stores it.
func (s *CatalogService) StoreModel(ctx context.Context, m *mdp.Model) (*models.ModelRecord, error) {
	payload, err := s.codec.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}
	return s.ImportModel(ctx, payload)
}

// LoadModel fetches a stored model and decodes it. The payload must still
// hash to the recorded content hash.
func (s *CatalogService) LoadModel(ctx context.Context, id core.ModelID) (*mdp.Model, *models.ModelRecord, error) {
	record, err := s.models.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.decodeRecord(record)
}

// LoadModelByHash is LoadModel keyed by content hash.
func (s *CatalogService) LoadModelByHash(ctx context.Context, hash core.ModelHash) (*mdp.Model, *models.ModelRecord, error) {
	record, err := s.models.GetByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	return s.decodeRecord(record)
}

func (s *CatalogService) decodeRecord(record *models.ModelRecord) (*mdp.Model, *models.ModelRecord, error) {
	if got := core.NewModelHash(record.Payload); got != record.Hash {
		return nil, nil, fmt.Errorf("%w: model %s stored as %s, payload hashes to %s",
			core.ErrHashMismatch, record.ID, record.Hash.Short(), got.Short())
	}

	m, err := s.codec.Decode(record.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode stored model %s: %w", record.ID, err)
	}
	return m, record, nil
}
