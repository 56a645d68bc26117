package pdfdoc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var (
	// ErrNotStream is returned when an object id does not name a stream
	ErrNotStream = errors.New("object is not a stream")

	// ErrUnsupportedFilter is returned for streams whose filters do not decode to raw bytes
	ErrUnsupportedFilter = errors.New("unsupported stream filter")
)

// byteFilters decode to the original bytes; image codecs are left to the caller
var byteFilters = map[string]bool{
	filter.Flate:     true,
	filter.LZW:       true,
	filter.RunLength: true,
	filter.ASCII85:   true,
	filter.ASCIIHex:  true,
}

// Document is a parsed PDF whose streams can be rewritten in place
type Document struct {
	ctx *model.Context
}

// Open reads and validates a PDF file
func Open(path string) (*Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	return &Document{ctx: ctx}, nil
}

// Save writes the document to path
func (d *Document) Save(path string) error {
	if err := api.WriteContextFile(d.ctx, path); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// PageCount returns the number of pages
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// Pages lists every page with its media box, image XObjects and content streams
func (d *Document) Pages() ([]Page, error) {
	pages := make([]Page, 0, d.ctx.PageCount)

	for nr := 1; nr <= d.ctx.PageCount; nr++ {
		pageDict, _, inherited, err := d.ctx.PageDict(nr, true)
		if err != nil {
			return nil, fmt.Errorf("failed to load page %d: %w", nr, err)
		}
		if pageDict == nil {
			return nil, fmt.Errorf("page %d is missing", nr)
		}

		page := Page{Number: nr}

		width, height, err := d.mediaBox(pageDict, inherited)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", nr, err)
		}
		page.WidthPt, page.HeightPt = width, height

		resources := pageDict["Resources"]
		if inherited != nil && inherited.Resources != nil {
			resources = inherited.Resources
		}
		if page.Images, err = d.imageRefs(resources); err != nil {
			return nil, fmt.Errorf("page %d: %w", nr, err)
		}

		page.Contents = refsOf(pageDict["Contents"], d.ctx)
		pages = append(pages, page)
	}

	return pages, nil
}

func (d *Document) mediaBox(pageDict types.Dict, inherited *model.InheritedPageAttrs) (float64, float64, error) {
	if inherited != nil && inherited.MediaBox != nil {
		return inherited.MediaBox.Width(), inherited.MediaBox.Height(), nil
	}

	obj, ok := pageDict["MediaBox"]
	if !ok {
		return 0, 0, nil
	}
	arr, err := d.ctx.DereferenceArray(obj)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid media box: %w", err)
	}
	if len(arr) != 4 {
		return 0, 0, nil
	}

	coords := make([]float64, 4)
	for i, o := range arr {
		o, err := d.ctx.Dereference(o)
		if err != nil {
			return 0, 0, err
		}
		coords[i] = number(o)
	}
	return abs(coords[2] - coords[0]), abs(coords[3] - coords[1]), nil
}

func (d *Document) imageRefs(resources types.Object) ([]ObjectID, error) {
	if resources == nil {
		return nil, nil
	}
	resDict, err := d.ctx.DereferenceDict(resources)
	if err != nil || resDict == nil {
		return nil, err
	}
	xobjects, err := d.ctx.DereferenceDict(resDict["XObject"])
	if err != nil || xobjects == nil {
		return nil, err
	}

	names := make([]string, 0, len(xobjects))
	for name := range xobjects {
		names = append(names, name)
	}
	sort.Strings(names)

	var ids []ObjectID
	for _, name := range names {
		ref, ok := xobjects[name].(types.IndirectRef)
		if !ok {
			continue
		}
		sd, ok := d.stream(ObjectID(ref.ObjectNumber))
		if !ok || nameOf(sd.Dict["Subtype"]) != "Image" {
			continue
		}
		ids = append(ids, ObjectID(ref.ObjectNumber))
	}
	return ids, nil
}

// Images lists every image XObject in object-number order
func (d *Document) Images() ([]ObjectID, error) {
	var ids []ObjectID
	for _, nr := range d.objectNumbers() {
		sd, ok := d.stream(ObjectID(nr))
		if ok && nameOf(sd.Dict["Subtype"]) == "Image" {
			ids = append(ids, ObjectID(nr))
		}
	}
	return ids, nil
}

// Image returns the stored attributes and raw bytes of an image XObject
func (d *Document) Image(id ObjectID) (*Image, error) {
	sd, ok := d.stream(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotStream, id)
	}

	img := &Image{
		ID:               id,
		Width:            d.intEntry(sd.Dict, "Width"),
		Height:           d.intEntry(sd.Dict, "Height"),
		Filter:           d.filterName(sd.Dict),
		BitsPerComponent: d.intEntry(sd.Dict, "BitsPerComponent"),
		Data:             sd.Raw,
	}
	img.ColorSpace, img.ColorComponents = d.colorSpace(sd.Dict)

	_, img.HasDecode = sd.Dict["Decode"]
	_, hasMask := sd.Dict["Mask"]
	_, hasSMask := sd.Dict["SMask"]
	img.HasMask = hasMask || hasSMask || isTrue(sd.Dict["ImageMask"])

	return img, nil
}

// ReplaceImage swaps the image stream for a baseline JPEG
func (d *Document) ReplaceImage(id ObjectID, enc EncodedImage) error {
	sd, ok := d.stream(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotStream, id)
	}

	colorSpace := ColorSpaceRGB
	if enc.Components == 1 {
		colorSpace = ColorSpaceGray
	}

	sd.Dict["Filter"] = types.Name(FilterDCT)
	delete(sd.Dict, "DecodeParms")
	sd.Dict["Width"] = types.Integer(enc.Width)
	sd.Dict["Height"] = types.Integer(enc.Height)
	sd.Dict["ColorSpace"] = types.Name(colorSpace)
	sd.Dict["BitsPerComponent"] = types.Integer(8)

	d.setRaw(&sd, enc.Data, []types.PDFFilter{{Name: FilterDCT}})
	d.ctx.Table[int(id)].Object = sd
	return nil
}

// ContentStream returns the stored bytes of a content stream
func (d *Document) ContentStream(id ObjectID) (*Stream, error) {
	sd, ok := d.stream(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotStream, id)
	}
	return &Stream{ID: id, Filter: d.filterName(sd.Dict), Data: sd.Raw}, nil
}

// ReplaceContentStream stores content as a Flate-encoded content stream
func (d *Document) ReplaceContentStream(id ObjectID, content []byte) error {
	sd, ok := d.stream(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotStream, id)
	}

	sd.Dict["Filter"] = types.Name(FilterFlate)
	delete(sd.Dict, "DecodeParms")
	sd.Content = content
	sd.StreamLengthObjNr = nil
	sd.FilterPipeline = []types.PDFFilter{{Name: FilterFlate}}
	if err := sd.Encode(); err != nil {
		return fmt.Errorf("failed to encode content stream %d: %w", id, err)
	}

	d.ctx.Table[int(id)].Object = sd
	return nil
}

// Decoded returns the bytes of a stream with its whole filter pipeline undone,
// predictors included. Streams behind an image codec yield ErrUnsupportedFilter.
func (d *Document) Decoded(id ObjectID) ([]byte, error) {
	sd, ok := d.stream(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotStream, id)
	}

	for _, f := range sd.FilterPipeline {
		if !byteFilters[f.Name] {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, f.Name)
		}
	}

	if len(sd.FilterPipeline) == 0 {
		return sd.Raw, nil
	}
	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("failed to decode stream %d: %w", id, err)
	}
	return sd.Content, nil
}

// Redirect rewrites every reference to a key of dups into a reference to its value
func (d *Document) Redirect(dups map[ObjectID]ObjectID) error {
	if len(dups) == 0 {
		return nil
	}

	for _, nr := range d.objectNumbers() {
		entry := d.ctx.Table[nr]
		entry.Object = redirect(entry.Object, dups)
	}

	if root := d.ctx.RootDict; root != nil {
		redirect(root, dups)
	}
	return nil
}

func redirect(obj types.Object, dups map[ObjectID]ObjectID) types.Object {
	switch o := obj.(type) {
	case types.IndirectRef:
		if target, ok := dups[ObjectID(o.ObjectNumber)]; ok {
			return *types.NewIndirectRef(int(target), 0)
		}
		return o
	case *types.IndirectRef:
		if o == nil {
			return o
		}
		if target, ok := dups[ObjectID(o.ObjectNumber)]; ok {
			return types.NewIndirectRef(int(target), 0)
		}
		return o
	case types.Dict:
		for k, v := range o {
			o[k] = redirect(v, dups)
		}
		return o
	case types.Array:
		for i, v := range o {
			o[i] = redirect(v, dups)
		}
		return o
	case types.StreamDict:
		for k, v := range o.Dict {
			o.Dict[k] = redirect(v, dups)
		}
		return o
	}
	return obj
}

func (d *Document) setRaw(sd *types.StreamDict, raw []byte, pipeline []types.PDFFilter) {
	length := int64(len(raw))
	sd.Dict["Length"] = types.Integer(len(raw))
	sd.Raw = raw
	sd.Content = nil
	sd.StreamLength = &length
	sd.StreamLengthObjNr = nil
	sd.FilterPipeline = pipeline
}

func (d *Document) stream(id ObjectID) (types.StreamDict, bool) {
	entry, ok := d.ctx.Table[int(id)]
	if !ok || entry == nil || entry.Free || entry.Object == nil {
		return types.StreamDict{}, false
	}
	switch sd := entry.Object.(type) {
	case types.StreamDict:
		return sd, true
	case *types.StreamDict:
		if sd != nil {
			return *sd, true
		}
	}
	return types.StreamDict{}, false
}

func (d *Document) objectNumbers() []int {
	nrs := make([]int, 0, len(d.ctx.Table))
	for nr, entry := range d.ctx.Table {
		if nr == 0 || entry == nil || entry.Free {
			continue
		}
		nrs = append(nrs, nr)
	}
	sort.Ints(nrs)
	return nrs
}

func (d *Document) intEntry(dict types.Dict, key string) int {
	obj, err := d.ctx.Dereference(dict[key])
	if err != nil {
		return 0
	}
	return int(number(obj))
}

// filterName returns the single filter of a stream, or the first of a chain
func (d *Document) filterName(dict types.Dict) string {
	obj, err := d.ctx.Dereference(dict["Filter"])
	if err != nil || obj == nil {
		return FilterNone
	}
	switch f := obj.(type) {
	case types.Name:
		return string(f)
	case types.Array:
		if len(f) == 1 {
			return nameOf(f[0])
		}
		if len(f) > 1 {
			return "chain:" + nameOf(f[0])
		}
	}
	return FilterNone
}

func (d *Document) colorSpace(dict types.Dict) (string, int) {
	obj, err := d.ctx.Dereference(dict["ColorSpace"])
	if err != nil || obj == nil {
		return "", 0
	}
	switch name := nameOf(obj); name {
	case ColorSpaceGray, "G":
		return ColorSpaceGray, 1
	case ColorSpaceRGB, "RGB":
		return ColorSpaceRGB, 3
	case ColorSpaceCMYK, "CMYK":
		return ColorSpaceCMYK, 4
	case "":
		return "complex", 0
	default:
		return name, 0
	}
}

func refsOf(obj types.Object, ctx *model.Context) []ObjectID {
	switch o := obj.(type) {
	case types.IndirectRef:
		// Contents may point at an array of streams
		if arr, err := ctx.DereferenceArray(o); err == nil && arr != nil {
			return refsOf(arr, ctx)
		}
		return []ObjectID{ObjectID(o.ObjectNumber)}
	case types.Array:
		ids := make([]ObjectID, 0, len(o))
		for _, item := range o {
			if ref, ok := item.(types.IndirectRef); ok {
				ids = append(ids, ObjectID(ref.ObjectNumber))
			}
		}
		return ids
	}
	return nil
}

func nameOf(obj types.Object) string {
	if n, ok := obj.(types.Name); ok {
		return string(n)
	}
	return ""
}

func isTrue(obj types.Object) bool {
	b, ok := obj.(types.Boolean)
	return ok && bool(b)
}

func number(obj types.Object) float64 {
	switch n := obj.(type) {
	case types.Integer:
		return float64(n)
	case types.Float:
		return float64(n)
	}
	return 0
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
