package handler

import (
	"mime/multipart"
	"strings"

	"github.com/cuongbtq/pdf-station/internal/api/dto"
	"github.com/cuongbtq/pdf-station/internal/domain"
)

const defaultQualityPercent = 50

// fileFields are the multipart keys accepted for uploads, in order
var fileFields = []string{"files", "files[]", "file"}

func collectFiles(form *multipart.Form) []*multipart.FileHeader {
	var files []*multipart.FileHeader
	for _, field := range fileFields {
		files = append(files, form.File[field]...)
	}
	return files
}

// buildParams turns the submitted form into the parameter set of op.
// action overrides the form's protect action for the dedicated protect routes.
func buildParams(op domain.Operation, form *dto.JobForm, action domain.ProtectAction) domain.Params {
	switch op {
	case domain.OperationCompress:
		quality := defaultQualityPercent
		if form.Quality != nil {
			quality = *form.Quality
		}
		return domain.Params{Compress: &domain.CompressParams{Quality: float64(quality) / 100}}

	case domain.OperationSplit:
		return domain.Params{Split: &domain.SplitParams{
			Type:     domain.SplitType(strings.ToLower(strings.TrimSpace(form.SplitType))),
			Ranges:   strings.TrimSpace(form.SplitRanges),
			Interval: form.SplitInterval,
		}}

	case domain.OperationProtect:
		if action == "" {
			action = domain.ProtectAction(strings.ToUpper(strings.TrimSpace(form.Action)))
		}
		if action == "" {
			action = domain.ProtectAdd
		}
		protect := &domain.ProtectParams{Action: action}
		if action == domain.ProtectRemove {
			protect.Password = form.Password
		} else {
			protect.UserPassword = form.UserPassword
			protect.OwnerPassword = form.OwnerPassword
			protect.AllowPrinting = flagOrTrue(form.AllowPrinting)
			protect.AllowCopying = flagOrTrue(form.AllowCopying)
			protect.AllowModification = flagOrTrue(form.AllowModification)
			protect.AllowAssembly = flagOrTrue(form.AllowAssembly)
		}
		return domain.Params{Protect: protect}
	}

	return domain.Params{}
}

func flagOrTrue(flag *bool) bool {
	return flag == nil || *flag
}

// paramsView is the public rendering of a job's parameters; passwords never leave the server
func paramsView(params domain.Params) map[string]any {
	switch {
	case params.Compress != nil:
		return map[string]any{"quality": params.Compress.Quality}

	case params.Split != nil:
		view := map[string]any{"type": params.Split.Type}
		if params.Split.Ranges != "" {
			view["ranges"] = params.Split.Ranges
		}
		if params.Split.Interval > 0 {
			view["interval"] = params.Split.Interval
		}
		return view

	case params.Protect != nil:
		view := map[string]any{"action": params.Protect.Action}
		if params.Protect.Action == domain.ProtectAdd {
			view["allow_printing"] = params.Protect.AllowPrinting
			view["allow_copying"] = params.Protect.AllowCopying
			view["allow_modification"] = params.Protect.AllowModification
			view["allow_assembly"] = params.Protect.AllowAssembly
		}
		return view
	}

	return nil
}
