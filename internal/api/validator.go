package api

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

var registerOnce sync.Once

// RegisterValidators 注册 category 与 payment_mode 校验标签
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected validator engine")
			return
		}
		if err = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
			_, ok := types.ParseCategory(fl.Field().String())
			return ok
		}); err != nil {
			return
		}
		err = v.RegisterValidation("payment_mode", func(fl validator.FieldLevel) bool {
			_, ok := types.ParsePaymentMode(fl.Field().String())
			return ok
		})
	})
	return err
}
