package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/marketplace-installments/internal/model"
)

// CreateRegion создаёт регион.
func (r *PostgresRepository) CreateRegion(ctx context.Context, name string) (*model.Region, error) {
	region := &model.Region{ID: uuid.New(), Name: name}
	_, err := r.pool.Exec(ctx, `INSERT INTO regions (id, name) VALUES ($1, $2)`, region.ID, region.Name)
	if err != nil {
		return nil, mapError(err, "region")
	}
	return region, nil
}

// CreateDistrict создаёт район в регионе.
func (r *PostgresRepository) CreateDistrict(ctx context.Context, regionID uuid.UUID, name string) (*model.District, error) {
	d := &model.District{ID: uuid.New(), RegionID: regionID, Name: name}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO districts (id, region_id, name) VALUES ($1, $2, $3)`, d.ID, d.RegionID, d.Name)
	if err != nil {
		return nil, mapError(err, "district")
	}
	return d, nil
}

// CreateMfy создаёт махаллю в районе.
func (r *PostgresRepository) CreateMfy(ctx context.Context, districtID uuid.UUID, name string) (*model.Mfy, error) {
	m := &model.Mfy{ID: uuid.New(), DistrictID: districtID, Name: name}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO mfys (id, district_id, name) VALUES ($1, $2, $3)`, m.ID, m.DistrictID, m.Name)
	if err != nil {
		return nil, mapError(err, "mfy")
	}
	return m, nil
}

// ListRegionTree возвращает полное дерево регион → район → махалля.
func (r *PostgresRepository) ListRegionTree(ctx context.Context) ([]model.Region, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, d.id, d.name, m.id, m.name
		 FROM regions r
		 LEFT JOIN districts d ON d.region_id = r.id
		 LEFT JOIN mfys m ON m.district_id = d.id
		 ORDER BY r.name, d.name, m.name`)
	if err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var (
			regionID              uuid.UUID
			regionName            string
			districtID, mfyID     *uuid.UUID
			districtName, mfyName *string
		)
		if err := rows.Scan(&regionID, &regionName, &districtID, &districtName, &mfyID, &mfyName); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}

		if n := len(regions); n == 0 || regions[n-1].ID != regionID {
			regions = append(regions, model.Region{ID: regionID, Name: regionName})
		}
		region := &regions[len(regions)-1]
		if districtID == nil {
			continue
		}

		if n := len(region.Districts); n == 0 || region.Districts[n-1].ID != *districtID {
			region.Districts = append(region.Districts, model.District{ID: *districtID, RegionID: regionID, Name: *districtName})
		}
		district := &region.Districts[len(region.Districts)-1]
		if mfyID == nil {
			continue
		}
		district.Mfys = append(district.Mfys, model.Mfy{ID: *mfyID, DistrictID: *districtID, Name: *mfyName})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return regions, nil
}
