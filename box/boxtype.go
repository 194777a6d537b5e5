package box

import "github.com/google/uuid"

// BoxType is a 4-byte ASCII box type tag (spec §3.1).
type BoxType [4]byte

func (t BoxType) String() string { return string(t[:]) }

// Expect returns an error unless t equals expected.
func (t BoxType) Expect(expected BoxType) error {
	if t != expected {
		return errInvalidData("expected box type %q, got %q", expected, t)
	}
	return nil
}

// IsUUID reports whether this is the extended-type sentinel "uuid".
func (t BoxType) IsUUID() bool { return t == TypeUUID }

// BoxType16 is the 16-byte extended type carried by a "uuid" box (spec §3.1).
type BoxType16 [16]byte

// NewBoxType16 builds an extended type from a UUID, grounded on
// github.com/google/uuid (see SPEC_FULL.md's ambient-stack ledger).
func NewBoxType16(id uuid.UUID) BoxType16 {
	var t BoxType16
	copy(t[:], id[:])
	return t
}

// UUID reinterprets the extended type as a uuid.UUID.
func (t BoxType16) UUID() uuid.UUID {
	id, _ := uuid.FromBytes(t[:])
	return id
}

func mkType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

// Known box types, grouped the way the teacher groups them in box.go.
var (
	TypeFtyp = mkType("ftyp")
	TypeStyp = mkType("styp")
	TypeUUID = mkType("uuid")

	TypeMoov = mkType("moov")
	TypeMvhd = mkType("mvhd")
	TypeTrak = mkType("trak")
	TypeTkhd = mkType("tkhd")
	TypeEdts = mkType("edts")
	TypeElst = mkType("elst")
	TypeMdia = mkType("mdia")
	TypeMdhd = mkType("mdhd")
	TypeHdlr = mkType("hdlr")
	TypeMinf = mkType("minf")
	TypeVmhd = mkType("vmhd")
	TypeSmhd = mkType("smhd")
	TypeDinf = mkType("dinf")
	TypeDref = mkType("dref")
	TypeURL  = mkType("url ")

	TypeStbl = mkType("stbl")
	TypeStsd = mkType("stsd")
	TypeStts = mkType("stts")
	TypeCtts = mkType("ctts")
	TypeStsc = mkType("stsc")
	TypeStsz = mkType("stsz")
	TypeStco = mkType("stco")
	TypeCo64 = mkType("co64")
	TypeStss = mkType("stss")

	TypeUdta = mkType("udta")
	TypeMdat = mkType("mdat")
	TypeFree = mkType("free")

	TypeMvex = mkType("mvex")
	TypeMehd = mkType("mehd")
	TypeTrex = mkType("trex")
	TypeMoof = mkType("moof")
	TypeMfhd = mkType("mfhd")
	TypeTraf = mkType("traf")
	TypeTfhd = mkType("tfhd")
	TypeTfdt = mkType("tfdt")
	TypeTrun = mkType("trun")
	TypeSidx = mkType("sidx")
	TypeMfra = mkType("mfra")
	TypeTfra = mkType("tfra")
	TypeMfro = mkType("mfro")

	TypeAvc1 = mkType("avc1")
	TypeAvcC = mkType("avcC")
	TypeHev1 = mkType("hev1")
	TypeHvc1 = mkType("hvc1")
	TypeHvcC = mkType("hvcC")
	TypeVp08 = mkType("vp08")
	TypeVp09 = mkType("vp09")
	TypeVpcC = mkType("vpcC")
	TypeAv01 = mkType("av01")
	TypeAv1C = mkType("av1C")
	TypeOpus = mkType("Opus")
	TypeDOps = mkType("dOps")
	TypeMp4a = mkType("mp4a")
	TypeEsds = mkType("esds")
	TypeFLaC = mkType("fLaC")
	TypeDfLa = mkType("dfLa")
)

// IsFullBox reports whether t has a 4-byte version+flags header (spec §3.1).
func IsFullBox(t BoxType) bool {
	switch t {
	case TypeMvhd, TypeTkhd, TypeMdhd, TypeHdlr, TypeVmhd, TypeSmhd, TypeDref,
		TypeURL, TypeStsd, TypeStts, TypeCtts, TypeStsc, TypeStsz, TypeStco,
		TypeCo64, TypeStss, TypeElst, TypeMehd, TypeTrex, TypeMfhd, TypeTfhd,
		TypeTfdt, TypeTrun, TypeSidx, TypeTfra, TypeVpcC:
		return true
	}
	return false
}

// IsContainerBox reports whether t holds child boxes (spec §3.2).
func IsContainerBox(t BoxType) bool {
	switch t {
	case TypeMoov, TypeTrak, TypeEdts, TypeMdia, TypeMinf, TypeDinf, TypeStbl,
		TypeMvex, TypeMoof, TypeTraf, TypeMfra:
		return true
	}
	return false
}

// IsOpaquePayload reports whether a box's payload is preserved verbatim
// rather than structurally decoded (spec §3.2, §9.1).
func IsOpaquePayload(t BoxType) bool {
	switch t {
	case TypeMdat, TypeUdta:
		return true
	}
	return false
}
