package source

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/models"
)

// ForInstitution returns the source variant for the given institution.
// Adding an institution means adding one case here plus its variant; the
// sync core is not touched.
func ForInstitution(inst models.Institution, cfg config.SourceConfig, log *logrus.Logger) (Source, error) {
	if cfg.Kind != "" && cfg.Kind != "file" {
		return nil, fmt.Errorf("institution %s: unsupported source kind %q", inst, cfg.Kind)
	}
	switch inst {
	case models.InstitutionCal, models.InstitutionMax, models.InstitutionIsracard:
		return newCardExportSource(inst, cfg.Path, log), nil
	case models.InstitutionMeitav, models.InstitutionMenora:
		return newPortfolioExportSource(inst, cfg.Path, log), nil
	default:
		return nil, fmt.Errorf("unknown institution: %s", inst)
	}
}
