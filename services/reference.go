package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"wa_ingest/config"
	"wa_ingest/logging"
	"wa_ingest/models"
	"wa_ingest/storage"
)

const defaultCity = "العاشر من رمضان"

var defaultFeatures = []models.Feature{
	{NameAr: "متقفله حديد", NameEn: "Iron Fence", Category: models.FeatureCategorySecurity},
	{NameAr: "ناصية", NameEn: "Corner", Category: models.FeatureCategoryLocation},
	{NameAr: "واجهة بحري", NameEn: "North Facing", Category: models.FeatureCategoryDirection},
	{NameAr: "أمامي", NameEn: "Front Facing", Category: models.FeatureCategoryDirection},
	{NameAr: "بجوار الخدمات", NameEn: "Near Services", Category: models.FeatureCategoryLocation},
	{NameAr: "توكيل", NameEn: "Authorized", Category: models.FeatureCategoryLegal},
	{NameAr: "عقد أخضر", NameEn: "Green Contract", Category: models.FeatureCategoryLegal},
	{NameAr: "ملف كامل", NameEn: "Complete File", Category: models.FeatureCategoryLegal},
	{NameAr: "مفروش", NameEn: "Furnished", Category: models.FeatureCategoryCondition},
}

// ReferenceData is the lookup content seeded before ingestion
type ReferenceData struct {
	Areas    []models.Area
	Features []models.Feature
}

// BuildReferenceData returns the built-in reference data with the non-zero
// fields of ref applied on top. ref may be nil.
func BuildReferenceData(ref *config.ReferenceConfig) ReferenceData {
	city, features := defaultCity, defaultFeatures
	from, to := ref.AreaRange()
	if ref != nil {
		if ref.City != "" {
			city = ref.City
		}
		if len(ref.Features) > 0 {
			features = ref.Features
		}
	}

	var data ReferenceData
	for n := from; n <= to; n++ {
		data.Areas = append(data.Areas, models.Area{
			Number: n,
			NameAr: "الحي " + strconv.Itoa(n),
			NameEn: "Area " + strconv.Itoa(n),
			City:   city,
		})
	}
	data.Features = append([]models.Feature(nil), features...)
	return data
}

type SeedStats struct {
	Areas    int
	Features int
}

// ReferenceLoader makes sure the reference rows exist
type ReferenceLoader struct {
	store storage.Store
	log   *logging.Logger
}

func NewReferenceLoader(store storage.Store, log *logging.Logger) *ReferenceLoader {
	if log == nil {
		log = logging.Nop()
	}
	return &ReferenceLoader{store: store, log: log}
}

// Seed upserts every area and feature. Existing rows are left as they are,
// so it is safe to call before every run. A failing row does not stop the
// others; all failures are returned joined.
func (l *ReferenceLoader) Seed(ctx context.Context, data ReferenceData) (SeedStats, error) {
	var stats SeedStats
	var errs []error

	for i := range data.Areas {
		area := &data.Areas[i]
		if err := l.store.UpsertArea(ctx, area); err != nil {
			errs = append(errs, fmt.Errorf("area %d: %w", area.Number, err))
			continue
		}
		stats.Areas++
	}

	for i := range data.Features {
		feature := &data.Features[i]
		if err := l.store.UpsertFeature(ctx, feature); err != nil {
			errs = append(errs, fmt.Errorf("feature %s: %w", feature.NameEn, err))
			continue
		}
		stats.Features++
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	l.log.Info("reference data seeded", "areas", stats.Areas, "features", stats.Features, "errors", len(errs))
	return stats, errors.Join(errs...)
}
