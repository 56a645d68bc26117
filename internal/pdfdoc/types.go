package pdfdoc

// ObjectID is a PDF indirect object number
type ObjectID int

// Common filter and colour space names
const (
	FilterNone  = ""
	FilterDCT   = "DCTDecode"
	FilterFlate = "FlateDecode"

	ColorSpaceGray = "DeviceGray"
	ColorSpaceRGB  = "DeviceRGB"
	ColorSpaceCMYK = "DeviceCMYK"
)

// Page is the geometry of a page and the objects it draws
type Page struct {
	Number   int
	WidthPt  float64
	HeightPt float64
	Images   []ObjectID
	Contents []ObjectID
}

// Image is an image XObject as stored in the file
type Image struct {
	ID               ObjectID
	Width            int
	Height           int
	Filter           string
	ColorSpace       string
	ColorComponents  int
	BitsPerComponent int
	HasMask          bool
	HasDecode        bool
	Data             []byte
}

// Signature identifies images that decode identically when their bytes match
type Signature struct {
	Width            int
	Height           int
	Filter           string
	ColorSpace       string
	BitsPerComponent int
}

// Signature returns the layout attributes of img
func (img *Image) Signature() Signature {
	return Signature{
		Width:            img.Width,
		Height:           img.Height,
		Filter:           img.Filter,
		ColorSpace:       img.ColorSpace,
		BitsPerComponent: img.BitsPerComponent,
	}
}

// EncodedImage is a JPEG replacement for an image XObject
type EncodedImage struct {
	Data       []byte
	Width      int
	Height     int
	Components int
}

// Stream is a content stream as stored in the file
type Stream struct {
	ID     ObjectID
	Filter string
	Data   []byte
}
