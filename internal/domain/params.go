package domain

import (
	"errors"
	"fmt"
	"strings"
)

// InstanceParams — параметры одного создаваемого инстанса.
//
// Набор полей покрывает общий знаменатель провайдеров; всё
// провайдер-специфичное уходит в Extra и интерпретируется адаптером.
type InstanceParams struct {
	// Cloud — идентификатор провайдера ("aws", "fake", ...).
	// Используется для выбора адаптера при диспатче.
	Cloud string `json:"cloud"`

	// Region — регион размещения.
	Region string `json:"region"`

	// InstanceType — тип/размер инстанса (например "t3.micro").
	InstanceType string `json:"instance_type"`

	// Image — идентификатор образа (AMI и т.п.).
	Image string `json:"image"`

	// Name — человекочитаемое имя инстанса.
	Name string `json:"name,omitempty"`

	// Extra — провайдер-специфичные параметры, прозрачные для оркестратора.
	Extra map[string]any `json:"extra,omitempty"`
}

// Ошибки валидации параметров.
var (
	ErrMissingCloud        = errors.New("cloud is required")
	ErrMissingRegion       = errors.New("region is required")
	ErrMissingInstanceType = errors.New("instance_type is required")
	ErrMissingImage        = errors.New("image is required")
)

// Validate проверяет обязательные поля.
// Схемная валидация выполняется выше по стеку; здесь только то,
// без чего оркестратор и адаптер не смогут работать.
func (p InstanceParams) Validate() error {
	if strings.TrimSpace(p.Cloud) == "" {
		return ErrMissingCloud
	}
	if strings.TrimSpace(p.Region) == "" {
		return ErrMissingRegion
	}
	if strings.TrimSpace(p.InstanceType) == "" {
		return ErrMissingInstanceType
	}
	if strings.TrimSpace(p.Image) == "" {
		return ErrMissingImage
	}
	return nil
}

// ValidateBatch валидирует список параметров целиком.
// Возвращает первую ошибку с индексом позиции в batch.
func ValidateBatch(instances []InstanceParams) error {
	for i, p := range instances {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
	}
	return nil
}
