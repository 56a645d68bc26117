package transform

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

const aesKeyLength = 256

// Protect adds or removes AES-256 password protection
func Protect(ctx context.Context, log *slog.Logger, req Request) error {
	input, err := singleInput(req)
	if err != nil {
		return err
	}

	params := req.Params.Protect
	if params == nil {
		return domain.NewTerminalError(fmt.Errorf("%w: protection parameters are required", domain.ErrInvalidParameters))
	}

	switch params.Action {
	case domain.ProtectAdd:
		if err := api.EncryptFile(input, req.OutputPath, encryptConfig(params)); err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}
		log.Info("Encrypted file",
			slog.Bool("allow_printing", params.AllowPrinting),
			slog.Bool("allow_copying", params.AllowCopying),
			slog.Bool("allow_modification", params.AllowModification),
			slog.Bool("allow_assembly", params.AllowAssembly),
		)
		return nil

	case domain.ProtectRemove:
		conf := model.NewDefaultConfiguration()
		conf.UserPW = params.Password
		conf.OwnerPW = params.Password
		if err := api.DecryptFile(input, req.OutputPath, conf); err != nil {
			if isPasswordError(err) {
				return domain.NewTerminalError(fmt.Errorf("%w: %v", domain.ErrInvalidParameters, err))
			}
			return fmt.Errorf("failed to decrypt: %w", err)
		}
		log.Info("Decrypted file")
		return nil
	}

	return domain.NewTerminalError(fmt.Errorf("%w: unknown protect action %q", domain.ErrInvalidParameters, params.Action))
}

func encryptConfig(params *domain.ProtectParams) *model.Configuration {
	conf := model.NewAESConfiguration(params.UserPassword, params.EffectiveOwnerPassword(), aesKeyLength)
	conf.Permissions = permissions(params)
	return conf
}

func permissions(params *domain.ProtectParams) model.PermissionFlags {
	flags := model.PermissionsNone
	if params.AllowPrinting {
		flags |= model.PermissionPrintRev2 | model.PermissionPrintRev3
	}
	if params.AllowCopying {
		flags |= model.PermissionExtract | model.PermissionExtractRev3
	}
	if params.AllowModification {
		flags |= model.PermissionModify
	}
	if params.AllowAssembly {
		flags |= model.PermissionAssembleRev3
	}
	return flags
}

// isPasswordError matches pdfcpu's wrong password and not encrypted failures
func isPasswordError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "correct password") || strings.Contains(msg, "not encrypted")
}
