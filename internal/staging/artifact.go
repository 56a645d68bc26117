package staging

import (
	"fmt"

	"github.com/cuongbtq/pdf-station/internal/domain"
)

// Artifact describes where an operation's output lives and how it is served
type Artifact struct {
	Dir         string
	Suffix      string
	Prefix      string
	Extension   string
	ContentType string
}

const (
	contentTypePDF  = "application/pdf"
	contentTypeZip  = "application/zip"
	contentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ArtifactFor resolves the output artifact of job
func ArtifactFor(job *domain.Job) (Artifact, error) {
	switch job.Operation {
	case domain.OperationCompress:
		return Artifact{Dir: "compressed", Suffix: "_compressed.pdf", Prefix: "compressed", Extension: "pdf", ContentType: contentTypePDF}, nil
	case domain.OperationMerge:
		return Artifact{Dir: "merged", Suffix: "_merged.pdf", Prefix: "merged", Extension: "pdf", ContentType: contentTypePDF}, nil
	case domain.OperationSplit:
		return Artifact{Dir: "split", Suffix: "_split.zip", Prefix: "split", Extension: "zip", ContentType: contentTypeZip}, nil
	case domain.OperationProtect:
		if job.Params.Protect == nil {
			return Artifact{}, domain.NewTerminalError(fmt.Errorf("%w: protection parameters are required", domain.ErrInvalidParameters))
		}
		switch job.Params.Protect.Action {
		case domain.ProtectAdd:
			return Artifact{Dir: "protected", Suffix: "_protected.pdf", Prefix: "protected", Extension: "pdf", ContentType: contentTypePDF}, nil
		case domain.ProtectRemove:
			return Artifact{Dir: "protected", Suffix: "_unlocked.pdf", Prefix: "unlocked", Extension: "pdf", ContentType: contentTypePDF}, nil
		}
		return Artifact{}, domain.NewTerminalError(fmt.Errorf("%w: unknown protect action %q", domain.ErrInvalidParameters, job.Params.Protect.Action))
	case domain.OperationPDFToWord:
		return Artifact{Dir: "word", Suffix: "_converted.docx", Prefix: "converted", Extension: "docx", ContentType: contentTypeDocx}, nil
	}

	return Artifact{}, domain.NewTerminalError(fmt.Errorf("%w: %q", domain.ErrInvalidOperation, job.Operation))
}

// DownloadName is the attachment filename offered for a completed job
func (a Artifact) DownloadName(job *domain.Job) string {
	return fmt.Sprintf("%s_%s.%s", a.Prefix, job.ID, a.Extension)
}
