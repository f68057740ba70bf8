package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"yolda/internal/domain"

	"go.uber.org/zap"
)

var (
	// ErrRegionNotFound is returned when a region or district id resolves
	// to nothing.
	ErrRegionNotFound = fmt.Errorf("region not found")
	// ErrRegionInUse blocks deletion of directory entries that orders
	// still reference.
	ErrRegionInUse = fmt.Errorf("region referenced by existing orders")
	// ErrDuplicateName is returned on a uniqueness violation.
	ErrDuplicateName = fmt.Errorf("name already exists")
)

type RegionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRegionRepository(db *sql.DB, logger *zap.Logger) *RegionRepository {
	return &RegionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRegion adds a region to the directory.
func (r *RegionRepository) CreateRegion(ctx context.Context, name string) (*domain.Region, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM regions WHERE name = ?)`, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to create region: %w", err)
	}
	if exists {
		return nil, ErrDuplicateName
	}

	result, err := r.db.ExecContext(ctx, `INSERT INTO regions (name) VALUES (?)`, name)
	if err != nil {
		r.logger.Error("Failed to create region", zap.Error(err), zap.String("name", name))
		return nil, fmt.Errorf("failed to create region: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to create region: %w", err)
	}

	r.logger.Info("Region created", zap.Int64("region_id", id), zap.String("name", name))
	return r.GetRegion(ctx, id)
}

// GetRegion loads a region with its districts.
func (r *RegionRepository) GetRegion(ctx context.Context, regionID int64) (*domain.Region, error) {
	region := &domain.Region{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM regions WHERE id = ?`, regionID).
		Scan(&region.ID, &region.Name, &region.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRegionNotFound
		}
		return nil, fmt.Errorf("failed to get region: %w", err)
	}

	districts, err := r.ListDistricts(ctx, regionID)
	if err != nil {
		return nil, err
	}
	region.Districts = districts
	return region, nil
}

// ListRegions returns the directory ordered by name, districts excluded.
func (r *RegionRepository) ListRegions(ctx context.Context) ([]*domain.Region, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM regions ORDER BY name`)
	if err != nil {
		r.logger.Error("Failed to list regions", zap.Error(err))
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	var regions []*domain.Region
	for rows.Next() {
		region := &domain.Region{}
		if err := rows.Scan(&region.ID, &region.Name, &region.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

// RenameRegion changes a region's display name.
func (r *RegionRepository) RenameRegion(ctx context.Context, regionID int64, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE regions SET name = ? WHERE id = ?`, name, regionID)
	if err != nil {
		r.logger.Error("Failed to rename region", zap.Error(err), zap.Int64("region_id", regionID))
		return fmt.Errorf("failed to rename region: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename region: %w", err)
	}
	if rows == 0 {
		return ErrRegionNotFound
	}
	return nil
}

// DeleteRegion removes a region and its districts. Deletion is refused
// while any order references the region on either end of its route.
func (r *RegionRepository) DeleteRegion(ctx context.Context, regionID int64) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE from_region_id = ? OR to_region_id = ?
		)`, regionID, regionID).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to delete region: %w", err)
	}
	if referenced {
		return ErrRegionInUse
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM regions WHERE id = ?`, regionID)
	if err != nil {
		r.logger.Error("Failed to delete region", zap.Error(err), zap.Int64("region_id", regionID))
		return fmt.Errorf("failed to delete region: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete region: %w", err)
	}
	if rows == 0 {
		return ErrRegionNotFound
	}

	r.logger.Info("Region deleted", zap.Int64("region_id", regionID))
	return nil
}

// CreateDistrict adds a district to a region.
func (r *RegionRepository) CreateDistrict(ctx context.Context, regionID int64, name string) (*domain.District, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM districts WHERE region_id = ? AND name = ?)`,
		regionID, name).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to create district: %w", err)
	}
	if exists {
		return nil, ErrDuplicateName
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO districts (region_id, name) VALUES (?, ?)`, regionID, name)
	if err != nil {
		r.logger.Error("Failed to create district",
			zap.Error(err), zap.Int64("region_id", regionID), zap.String("name", name))
		return nil, fmt.Errorf("failed to create district: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to create district: %w", err)
	}

	district := &domain.District{}
	err = r.db.QueryRowContext(ctx,
		`SELECT id, region_id, name, created_at FROM districts WHERE id = ?`, id).
		Scan(&district.ID, &district.RegionID, &district.Name, &district.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create district: %w", err)
	}
	return district, nil
}

// GetDistrict loads a single district.
func (r *RegionRepository) GetDistrict(ctx context.Context, districtID int64) (*domain.District, error) {
	district := &domain.District{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, region_id, name, created_at FROM districts WHERE id = ?`, districtID).
		Scan(&district.ID, &district.RegionID, &district.Name, &district.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRegionNotFound
		}
		return nil, fmt.Errorf("failed to get district: %w", err)
	}
	return district, nil
}

// ListDistricts returns a region's districts ordered by name.
func (r *RegionRepository) ListDistricts(ctx context.Context, regionID int64) ([]domain.District, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, region_id, name, created_at FROM districts WHERE region_id = ? ORDER BY name`,
		regionID)
	if err != nil {
		r.logger.Error("Failed to list districts", zap.Error(err), zap.Int64("region_id", regionID))
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	defer rows.Close()

	var districts []domain.District
	for rows.Next() {
		district := domain.District{}
		if err := rows.Scan(&district.ID, &district.RegionID, &district.Name, &district.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan district: %w", err)
		}
		districts = append(districts, district)
	}
	return districts, rows.Err()
}

// RenameDistrict changes a district's display name.
func (r *RegionRepository) RenameDistrict(ctx context.Context, districtID int64, name string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE districts SET name = ? WHERE id = ?`, name, districtID)
	if err != nil {
		r.logger.Error("Failed to rename district", zap.Error(err), zap.Int64("district_id", districtID))
		return fmt.Errorf("failed to rename district: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename district: %w", err)
	}
	if rows == 0 {
		return ErrRegionNotFound
	}
	return nil
}

// DeleteDistrict removes a district unless orders still reference it.
func (r *RegionRepository) DeleteDistrict(ctx context.Context, districtID int64) error {
	var referenced bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE from_district_id = ? OR to_district_id = ?
		)`, districtID, districtID).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("failed to delete district: %w", err)
	}
	if referenced {
		return ErrRegionInUse
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM districts WHERE id = ?`, districtID)
	if err != nil {
		r.logger.Error("Failed to delete district", zap.Error(err), zap.Int64("district_id", districtID))
		return fmt.Errorf("failed to delete district: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete district: %w", err)
	}
	if rows == 0 {
		return ErrRegionNotFound
	}
	return nil
}

// regionSeed mirrors the layout of the bundled regions file.
type regionSeed struct {
	Name      string   `json:"name"`
	Districts []string `json:"districts"`
}

// SeedFromFile loads the bundled region list into an empty directory.
// A non-empty directory is left untouched so admin edits survive restarts.
func (r *RegionRepository) SeedFromFile(ctx context.Context, path string) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM regions`).Scan(&count); err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}
	if count > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read regions file: %w", err)
	}

	var seeds []regionSeed
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return fmt.Errorf("failed to parse regions file: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}
	defer tx.Rollback()

	for _, seed := range seeds {
		result, err := tx.ExecContext(ctx, `INSERT INTO regions (name) VALUES (?)`, seed.Name)
		if err != nil {
			return fmt.Errorf("failed to seed region %q: %w", seed.Name, err)
		}
		regionID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to seed region %q: %w", seed.Name, err)
		}
		for _, district := range seed.Districts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO districts (region_id, name) VALUES (?, ?)`, regionID, district); err != nil {
				return fmt.Errorf("failed to seed district %q: %w", district, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to seed regions: %w", err)
	}

	r.logger.Info("Region directory seeded", zap.Int("regions", len(seeds)), zap.String("file", path))
	return nil
}
