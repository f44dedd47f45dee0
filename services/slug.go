package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vnkhanh/tracer-study/models"
	"github.com/vnkhanh/tracer-study/utils"
	"gorm.io/gorm"
)

// slugAttempts bounds base, base-2, ..., base-10.
const slugAttempts = 10

func slugTaken(tx *gorm.DB, slug string, exclude uint) (bool, error) {
	var n int64
	q := tx.Model(&models.Questionnaire{}).Where("slug = ?", slug)
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return n > 0, nil
}

func exhausted(base string) error {
	return &ValidationError{
		Fields: []FieldError{{Field: "slug", Message: fmt.Sprintf("no free slug for %q after %d attempts", base, slugAttempts)}},
		cause:  ErrSlugExhausted,
	}
}

// uniqueSlug returns the first free candidate of base, base-2, ... base-10.
func uniqueSlug(tx *gorm.DB, base string, exclude uint) (string, error) {
	for i := 1; i <= slugAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := slugTaken(tx, candidate, exclude)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", exhausted(base)
}

// uniqueCode draws random codes until one is unused as a slug.
func uniqueCode(tx *gorm.DB) (string, error) {
	for i := 0; i < slugAttempts; i++ {
		code, err := utils.GenerateCode()
		if err != nil {
			return "", err
		}
		taken, err := slugTaken(tx, code, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", exhausted("code")
}

// derivedSlug tries base and its numbered suffixes, then falls back to a
// random code once they are all taken or base is empty.
func derivedSlug(tx *gorm.DB, base string, exclude uint) (string, error) {
	if base == "" {
		return uniqueCode(tx)
	}
	slug, err := uniqueSlug(tx, base, exclude)
	if errors.Is(err, ErrSlugExhausted) {
		return uniqueCode(tx)
	}
	return slug, err
}

// resolveSlug validates an explicit slug or derives one from the title.
func (s *SchemaService) resolveSlug(tx *gorm.DB, explicit *string, title string, exclude uint) (string, error) {
	if explicit != nil && trimmed(explicit) != "" {
		slug := utils.Slugify(*explicit)
		if slug == "" {
			return "", invalidField("slug", "must contain letters or digits")
		}
		taken, err := slugTaken(tx, slug, exclude)
		if err != nil {
			return "", err
		}
		if taken {
			return "", invalidField("slug", "slug already taken")
		}
		return slug, nil
	}

	return derivedSlug(tx, utils.Slugify(title), exclude)
}

// GenerateSlug returns a free slug derived from title.
func (s *SchemaService) GenerateSlug(ctx context.Context, title string) (string, error) {
	return s.resolveSlug(s.db.WithContext(ctx), nil, title, 0)
}

// GenerateUniqueCode returns a random code that is not used as any slug.
func (s *SchemaService) GenerateUniqueCode(ctx context.Context) (string, error) {
	return uniqueCode(s.db.WithContext(ctx))
}

// duplicateSlug turns a lost insert race on the unique slug index into the
// same validation error the pre-check returns.
func duplicateSlug(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return invalidField("slug", "slug already taken")
	}
	return err
}
