package box

// --- Structural validation (spec §3.2's mandatory nesting grammar) ---
//
// DecodeNode/DecodeTopLevel only check that each box's declared size fits
// its enclosing range; they never check that a container actually holds the
// children the format requires. ValidateTopLevel walks a decoded tree after
// the fact and reports the first missing mandatory child as a
// MissingBoxError, named the same way spec §7's box-context diagnostics
// are: "missing mandatory box <four_cc> in <parent>".

// ValidateTopLevel checks every moov and moof in a decoded top-level box
// list against spec §3.2's mandatory nesting grammar.
func ValidateTopLevel(nodes []*Node) error {
	for _, n := range nodes {
		switch n.Box.Type() {
		case TypeMoov:
			if err := validateMoov(n); err != nil {
				return err
			}
		case TypeMoof:
			if err := validateMoof(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireChild(n *Node, child BoxType, parent string) (*Node, error) {
	c := n.Find(child)
	if c == nil {
		return nil, errMissingBox(child.String(), parent)
	}
	return c, nil
}

// validateMoov checks moov→mvhd, moov→trak+ and recurses into each trak
// (spec §3.2).
func validateMoov(moov *Node) error {
	if _, err := requireChild(moov, TypeMvhd, TypeMoov.String()); err != nil {
		return err
	}
	traks := moov.FindAll(TypeTrak)
	if len(traks) == 0 {
		return errMissingBox(TypeTrak.String(), TypeMoov.String())
	}
	for _, trak := range traks {
		if err := validateTrak(trak); err != nil {
			return err
		}
	}
	return nil
}

// validateTrak checks trak→tkhd, trak→mdia, and (if present) edts→elst
// (spec §3.2).
func validateTrak(trak *Node) error {
	if _, err := requireChild(trak, TypeTkhd, TypeTrak.String()); err != nil {
		return err
	}
	if edts := trak.Find(TypeEdts); edts != nil {
		if _, err := requireChild(edts, TypeElst, TypeEdts.String()); err != nil {
			return err
		}
	}
	mdia, err := requireChild(trak, TypeMdia, TypeTrak.String())
	if err != nil {
		return err
	}
	return validateMdia(mdia)
}

// validateMdia checks mdia→mdhd, mdia→hdlr, mdia→minf (spec §3.2).
func validateMdia(mdia *Node) error {
	if _, err := requireChild(mdia, TypeMdhd, TypeMdia.String()); err != nil {
		return err
	}
	if _, err := requireChild(mdia, TypeHdlr, TypeMdia.String()); err != nil {
		return err
	}
	minf, err := requireChild(mdia, TypeMinf, TypeMdia.String())
	if err != nil {
		return err
	}
	return validateMinf(minf)
}

// validateMinf checks minf→dinf→dref→url and minf→stbl. (smhd|vmhd) is
// optional per spec §3.2 ("absent for non-AV tracks") and is not enforced
// here.
func validateMinf(minf *Node) error {
	dinf, err := requireChild(minf, TypeDinf, TypeMinf.String())
	if err != nil {
		return err
	}
	dref, err := requireChild(dinf, TypeDref, TypeDinf.String())
	if err != nil {
		return err
	}
	if d, ok := dref.Box.(*Dref); ok {
		if len(d.Entries) == 0 && len(dref.Children) == 0 {
			return errMissingBox(TypeURL.String(), TypeDref.String())
		}
	}
	stbl, err := requireChild(minf, TypeStbl, TypeMinf.String())
	if err != nil {
		return err
	}
	return validateStbl(stbl)
}

// validateStbl checks stbl→stsd→SampleEntry+, stbl→stts, stbl→stsc,
// stbl→stsz, and the stco-XOR-co64 rule (spec §3.2).
func validateStbl(stbl *Node) error {
	stsd, err := requireChild(stbl, TypeStsd, TypeStbl.String())
	if err != nil {
		return err
	}
	if len(stsd.Children) == 0 {
		return errMissingBox("SampleEntry", TypeStsd.String())
	}
	if _, err := requireChild(stbl, TypeStts, TypeStbl.String()); err != nil {
		return err
	}
	if _, err := requireChild(stbl, TypeStsc, TypeStbl.String()); err != nil {
		return err
	}
	if _, err := requireChild(stbl, TypeStsz, TypeStbl.String()); err != nil {
		return err
	}
	hasStco := stbl.Find(TypeStco) != nil
	hasCo64 := stbl.Find(TypeCo64) != nil
	switch {
	case !hasStco && !hasCo64:
		return errMissingBox(TypeStco.String()+"|"+TypeCo64.String(), TypeStbl.String())
	case hasStco && hasCo64:
		return errInvalidData("stbl carries both stco and co64; exactly one is allowed")
	}
	return nil
}

// validateMoof checks moof→mfhd, moof→traf+, and recurses into each traf
// (spec §3.2).
func validateMoof(moof *Node) error {
	if _, err := requireChild(moof, TypeMfhd, TypeMoof.String()); err != nil {
		return err
	}
	trafs := moof.FindAll(TypeTraf)
	if len(trafs) == 0 {
		return errMissingBox(TypeTraf.String(), TypeMoof.String())
	}
	for _, traf := range trafs {
		if _, err := requireChild(traf, TypeTfhd, TypeTraf.String()); err != nil {
			return err
		}
		// tfdt is optional (spec §3.2: "tfdt?"); trun+ requires at least one.
		if len(traf.FindAll(TypeTrun)) == 0 {
			return errMissingBox(TypeTrun.String(), TypeTraf.String())
		}
	}
	return nil
}
