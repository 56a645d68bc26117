package compression

import "github.com/cuongbtq/pdf-station/internal/pdfdoc"

// Document is the object-level view of a PDF the engine rewrites
type Document interface {
	Pages() ([]pdfdoc.Page, error)
	Image(id pdfdoc.ObjectID) (*pdfdoc.Image, error)
	ReplaceImage(id pdfdoc.ObjectID, enc pdfdoc.EncodedImage) error
	ContentStream(id pdfdoc.ObjectID) (*pdfdoc.Stream, error)
	ReplaceContentStream(id pdfdoc.ObjectID, content []byte) error
	Decoded(id pdfdoc.ObjectID) ([]byte, error)
	Images() ([]pdfdoc.ObjectID, error)
	Redirect(dups map[pdfdoc.ObjectID]pdfdoc.ObjectID) error
}
