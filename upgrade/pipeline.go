package upgrade

import (
	"fmt"
	"io"

	"github.com/cryptoadvance/specter-bootloader-go/integrity"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/sig"
	"github.com/cryptoadvance/specter-bootloader-go/sigmsg"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

// progressCaption is the caption passed to platform.UI.Progress for every
// stage of an upgrade.
const progressCaption = "Firmware Upgrade"

// ioChunkSize is the buffer size used to stream section payloads from the
// upgrade file into flash memory.
const ioChunkSize = 4096

// Upgrade stages, in the order they execute. Ordinal order doubles as the
// index into stageTable.
const (
	StageReadFile util.Stage = iota
	StageVerifyFile
	StageUnprotectFlash
	StageEraseFlash
	StageWriteFlash
	StageCalcHash
	StageVerifySig
	StageCreateICR
	StageProtectFlash
	nStages
)

type stageEntry struct {
	name    string
	percent uint32
}

// stageTable assigns each stage its share of the overall 0-100% progress
// range; the percentages sum to exactly 100.
var stageTable = [nStages]stageEntry{
	StageReadFile:       {"Reading upgrade file", 2},
	StageVerifyFile:     {"Verifying file integrity", 21},
	StageUnprotectFlash: {"Removing write protection", 1},
	StageEraseFlash:     {"Erasing flash memory", 30},
	StageWriteFlash:     {"Writing flash memory", 36},
	StageCalcHash:       {"Calculating hashes", 5},
	StageVerifySig:      {"Verifying signatures", 2},
	StageCreateICR:      {"Finishing", 2},
	StageProtectFlash:   {"Applying write protection", 1},
}

// progressCtx accumulates per-stage progress reports into a single 0-100%
// (expressed in 0.01% units) figure, splitting stages that touch both the
// Bootloader and Main Firmware proportionally by payload size.
type progressCtx struct {
	upgradeBoot     bool
	upgradeMain     bool
	bootPercentX100 uint32
}

func newProgressCtx(md *Metadata) *progressCtx {
	ctx := &progressCtx{
		upgradeBoot:     md.BootSection.Loaded,
		upgradeMain:     md.MainSection.Loaded,
		bootPercentX100: 5000, // 50% by default
	}
	if ctx.upgradeBoot && ctx.upgradeMain {
		mainSize := md.MainSection.Header.PlSize
		bootSize := md.BootSection.Header.PlSize
		if mainSize < ^uint32(0)-bootSize {
			ctx.bootPercentX100 = util.PercentX100(mainSize+bootSize, bootSize)
		}
	}
	return ctx
}

// report renders one progress update from a stage/substage tag plus the
// workload fraction of that stage's current operation.
func (ctx *progressCtx) report(ui platform.UI, tag util.Tag, total, complete uint32) {
	substage := tag.Substage
	if !ctx.upgradeBoot || !ctx.upgradeMain {
		substage = util.SubstageNone
	}

	percentX100 := uint32(0)
	for i := util.Stage(0); i < tag.Stage; i++ {
		percentX100 += stageTable[i].percent
	}
	percentX100 *= 100

	opPercentX100 := util.PercentX100(total, complete)
	stagePercentX100 := opPercentX100
	switch substage {
	case util.SubstageBoot:
		stagePercentX100 = opPercentX100 * ctx.bootPercentX100 / 10000
	case util.SubstageMain:
		stagePercentX100 = ctx.bootPercentX100 + opPercentX100*(10000-ctx.bootPercentX100)/10000
	}
	percentX100 += stagePercentX100 * stageTable[tag.Stage].percent / 100

	ui.Progress(progressCaption, stageTable[tag.Stage].name, percentX100)
}

// fn adapts ctx into a util.ProgressFunc bound to ui.
func (ctx *progressCtx) fn(ui platform.UI) util.ProgressFunc {
	return func(tag util.Tag, total, complete uint32) {
		ctx.report(ui, tag, total, complete)
	}
}

// Result is the outcome of a non-fatal upgrade attempt: either the upgrade
// completed, or it was skipped/rejected for a reason that deserves a user
// alert rather than treatment as an internal failure. Pipeline.Run returns
// an error instead of Result for conditions that indicate a corrupted file
// or a flash-memory fault.
type Result struct {
	Completed bool
	Alert     platform.AlertType
	Caption   string
	Message   string
}

// Pipeline drives a single upgrade attempt against a device's flash memory.
type Pipeline struct {
	Services            platform.Services
	FlashMap            FlashMap
	Keys                Keyset
	AllowRC             bool
	ProtectAfterUpgrade bool
}

// NewPipeline resolves the flash memory map from services and returns a
// ready-to-run Pipeline.
func NewPipeline(services platform.Services, keys Keyset, allowRC bool) (*Pipeline, error) {
	fm, err := ResolveFlashMap(services)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Services: services, FlashMap: fm, Keys: keys, AllowRC: allowRC}, nil
}

// Run performs one upgrade attempt using file (already open, positioned at
// its start), whose on-media name is fileName for reporting purposes, and
// loadedFrom identifying which Bootloader copy is currently executing (the
// upgrade always targets the other one).
func (p *Pipeline) Run(file seekable, fileName string, loadedFrom platform.Addr) (Result, error) {
	p.Services.Progress(progressCaption, stageTable[StageReadFile].name, 0)

	md, err := ReadMetadata(file)
	if err != nil {
		return Result{}, fmt.Errorf("upgrade: incorrect format of upgrade file: %w", err)
	}
	if !CheckCompatibility(md, p.FlashMap, p.Services.PlatformID()) {
		return Result{}, fmt.Errorf("upgrade: upgrade file is incompatible with the device")
	}

	ctx := newProgressCtx(md)
	inactiveBL := p.FlashMap.InactiveBootloaderAddr(loadedFrom)

	bootVer, mainVer := p.installedVersions(loadedFrom)
	check := CheckVersions(md, bootVer, mainVer, p.AllowRC)
	if check == VersionSame {
		mainIntact := !md.MainSection.Loaded ||
			integrity.Verify(p.Services, p.FlashMap.FirmwareBase, uint32(p.FlashMap.FirmwareSize), nil)
		if mainIntact {
			return Result{Completed: false, Alert: platform.AlertInfo, Caption: "Version Check", Message: check.Text()}, nil
		}
		// Main Firmware is corrupted despite reporting the same version:
		// continue with a self-healing reinstall.
	} else if check != VersionNewer {
		return Result{Completed: false, Alert: platform.AlertError, Caption: "Version Check Failed", Message: check.Text()}, nil
	}

	if !p.verifyPayloadSections(file, md, ctx) {
		return Result{}, fmt.Errorf("upgrade: upgrade file is corrupted")
	}
	if err := p.setWriteProtection(md, inactiveBL, false, ctx); err != nil {
		return Result{}, fmt.Errorf("upgrade: removing write protection: %w", err)
	}
	if err := p.eraseFlash(md, inactiveBL, ctx); err != nil {
		return Result{}, fmt.Errorf("upgrade: erasing flash memory: %w", err)
	}
	if err := p.copySections(file, md, inactiveBL, ctx); err != nil {
		return Result{}, fmt.Errorf("upgrade: copying firmware to flash memory: %w", err)
	}
	hashes, err := p.hashFlashSections(md, inactiveBL, ctx)
	if err != nil {
		return Result{}, fmt.Errorf("upgrade: calculating firmware hash: %w", err)
	}

	nValid, threshold, sigErr := p.verifyMultisig(md, hashes, ctx)
	if sigErr != nil || nValid < int32(threshold) {
		msg := "Not enough signatures"
		if sigErr != nil {
			msg = sigErr.Error()
		}
		return Result{Completed: false, Alert: platform.AlertError, Caption: "Signature Error", Message: msg}, nil
	}

	if err := p.createICRs(md, inactiveBL, ctx); err != nil {
		return Result{}, fmt.Errorf("upgrade: creating integrity check records: %w", err)
	}
	if p.ProtectAfterUpgrade {
		if err := p.setWriteProtection(md, inactiveBL, true, ctx); err != nil {
			return Result{}, fmt.Errorf("upgrade: applying write protection: %w", err)
		}
	}

	report := p.buildReport(fileName, md, bootVer, mainVer)
	return Result{Completed: true, Alert: platform.AlertInfo, Caption: "Upgrade Complete", Message: report}, nil
}

func (p *Pipeline) installedVersions(loadedFrom platform.Addr) (bootVer, mainVer uint32) {
	bootVer, mainVer = util.VersionNA, util.VersionNA
	if v, ok := integrity.GetVersion(p.Services, loadedFrom, uint32(p.FlashMap.BootloaderSize)); ok {
		bootVer = v
	}
	if v, ok := integrity.GetVersion(p.Services, p.FlashMap.FirmwareBase, uint32(p.FlashMap.FirmwareSize)); ok {
		mainVer = v
	}
	return bootVer, mainVer
}

func (p *Pipeline) verifyPayloadSections(file seekable, md *Metadata, ctx *progressCtx) bool {
	nValid := 0
	if md.BootSection.Loaded && p.verifyOneSection(file, &md.BootSection, ctx, util.SubstageBoot) {
		nValid++
	}
	if md.MainSection.Loaded && p.verifyOneSection(file, &md.MainSection, ctx, util.SubstageMain) {
		nValid++
	}
	return nValid > 0 && nValid == md.PayloadSectionCount()
}

func (p *Pipeline) verifyOneSection(file seekable, sect *SectionMeta, ctx *progressCtx, sub util.Substage) bool {
	if _, err := file.Seek(sect.PlFileOffset, io.SeekStart); err != nil {
		return false
	}
	tag := util.Tag{Stage: StageVerifyFile, Substage: sub}
	return section.ValidatePayloadFromFile(sect.Header, file, section.DefaultChunkSize, ctx.fn(p.Services), tag)
}

func (p *Pipeline) setWriteProtection(md *Metadata, inactiveBL platform.Addr, enable bool, ctx *progressCtx) error {
	stage := StageUnprotectFlash
	if enable {
		stage = StageProtectFlash
	}
	if md.BootSection.Loaded {
		tag := util.Tag{Stage: stage, Substage: util.SubstageBoot}
		ctx.report(p.Services, tag, 1, 0)
		if err := p.Services.WriteProtect(inactiveBL, uint32(p.FlashMap.BootloaderSize), enable); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	if md.MainSection.Loaded {
		tag := util.Tag{Stage: stage, Substage: util.SubstageMain}
		ctx.report(p.Services, tag, 1, 0)
		if err := p.Services.WriteProtect(p.FlashMap.FirmwareBase, uint32(p.FlashMap.FirmwareSize), enable); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	return nil
}

func (p *Pipeline) eraseFlash(md *Metadata, inactiveBL platform.Addr, ctx *progressCtx) error {
	if md.BootSection.Loaded {
		tag := util.Tag{Stage: StageEraseFlash, Substage: util.SubstageBoot}
		ctx.report(p.Services, tag, 1, 0)
		if err := p.Services.Erase(inactiveBL, uint32(p.FlashMap.BootloaderSize)); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	if md.MainSection.Loaded {
		tag := util.Tag{Stage: StageEraseFlash, Substage: util.SubstageMain}
		ctx.report(p.Services, tag, 1, 0)
		if err := p.Services.Erase(p.FlashMap.FirmwareBase, uint32(p.FlashMap.FirmwareSize)); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	return nil
}

func (p *Pipeline) copySections(file seekable, md *Metadata, inactiveBL platform.Addr, ctx *progressCtx) error {
	if md.BootSection.Loaded {
		if err := p.copyOneSection(file, inactiveBL, &md.BootSection, ctx, util.SubstageBoot); err != nil {
			return err
		}
	}
	if md.MainSection.Loaded {
		if err := p.copyOneSection(file, p.FlashMap.FirmwareBase, &md.MainSection, ctx, util.SubstageMain); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) copyOneSection(file seekable, flashAddr platform.Addr, sect *SectionMeta, ctx *progressCtx, sub util.Substage) error {
	if _, err := file.Seek(sect.PlFileOffset, io.SeekStart); err != nil {
		return err
	}
	tag := util.Tag{Stage: StageWriteFlash, Substage: sub}
	remaining := sect.Header.PlSize
	addr := flashAddr
	buf := make([]byte, ioChunkSize)
	ctx.report(p.Services, tag, sect.Header.PlSize, 0)
	for remaining > 0 {
		n := uint32(ioChunkSize)
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(file, buf[:n]); err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		if err := p.Services.Write(addr, buf[:n]); err != nil {
			return err
		}
		addr += platform.Addr(n)
		remaining -= n
		ctx.report(p.Services, tag, sect.Header.PlSize, sect.Header.PlSize-remaining)
	}
	return nil
}

func (p *Pipeline) hashFlashSections(md *Metadata, inactiveBL platform.Addr, ctx *progressCtx) ([]section.Hash, error) {
	var hashes []section.Hash
	if md.BootSection.Loaded {
		tag := util.Tag{Stage: StageCalcHash, Substage: util.SubstageBoot}
		h, ok := section.HashOverFlash(md.BootSection.Header, md.BootSection.HeaderRaw, p.Services, inactiveBL, section.DefaultChunkSize, ctx.fn(p.Services), tag)
		if !ok {
			return nil, fmt.Errorf("hashing bootloader section")
		}
		hashes = append(hashes, h)
	}
	if md.MainSection.Loaded {
		tag := util.Tag{Stage: StageCalcHash, Substage: util.SubstageMain}
		h, ok := section.HashOverFlash(md.MainSection.Header, md.MainSection.HeaderRaw, p.Services, p.FlashMap.FirmwareBase, section.DefaultChunkSize, ctx.fn(p.Services), tag)
		if !ok {
			return nil, fmt.Errorf("hashing main firmware section")
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func (p *Pipeline) verifyMultisig(md *Metadata, hashes []section.Hash, ctx *progressCtx) (int32, int, error) {
	algorithm, ok := section.GetAttrStr(md.SigSection.Header, section.AttrAlgorithm)
	if !ok {
		return -1, 0, fmt.Errorf("signature section has no algorithm attribute")
	}
	message, err := sigmsg.Make(hashes)
	if err != nil {
		return -1, 0, err
	}
	keySet, threshold := p.Keys.SelectFor(md)
	tag := util.Tag{Stage: StageVerifySig}
	nValid, err := sig.VerifyMultisig(algorithm, md.SigPayload, keySet, []byte(message), ctx.fn(p.Services), tag)
	return nValid, threshold, err
}

func (p *Pipeline) createICRs(md *Metadata, inactiveBL platform.Addr, ctx *progressCtx) error {
	if md.BootSection.Loaded {
		tag := util.Tag{Stage: StageCreateICR, Substage: util.SubstageBoot}
		ctx.report(p.Services, tag, 1, 0)
		if err := integrity.Create(p.Services, inactiveBL, uint32(p.FlashMap.BootloaderSize), md.BootSection.Header.PlSize, md.BootSection.Header.PlVer); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	if md.MainSection.Loaded {
		tag := util.Tag{Stage: StageCreateICR, Substage: util.SubstageMain}
		ctx.report(p.Services, tag, 1, 0)
		if err := integrity.Create(p.Services, p.FlashMap.FirmwareBase, uint32(p.FlashMap.FirmwareSize), md.MainSection.Header.PlSize, md.MainSection.Header.PlVer); err != nil {
			return err
		}
		ctx.report(p.Services, tag, 1, 1)
	}
	return nil
}

func (p *Pipeline) buildReport(fileName string, md *Metadata, prevBootVer, prevMainVer uint32) string {
	report := fmt.Sprintf("File: %s\n", fileName)
	report += sectionReport("Bootloader", md.BootSection, prevBootVer)
	report += sectionReport("Firmware", md.MainSection, prevMainVer)
	report += "\nWrite protection: "
	if p.ProtectAfterUpgrade {
		report += "enabled"
	} else {
		report += "disabled"
	}
	report += "\nRead protection:  "
	level, err := p.Services.ReadProtectionLevel()
	switch {
	case err != nil || level < 0:
		report += "unavailable"
	case level == 0:
		report += "disabled"
	default:
		report += fmt.Sprintf("Level %d", level)
	}
	return report
}

func sectionReport(label string, sect SectionMeta, prevVer uint32) string {
	if !sect.Loaded {
		return ""
	}
	prevStr := "none"
	if prevVer != util.VersionNA {
		if s, ok := util.VersionToStr(prevVer); ok {
			prevStr = s
		}
	}
	currStr, _ := util.VersionToStr(sect.Header.PlVer)
	return fmt.Sprintf("%s: %s->%s\n", label, prevStr, currStr)
}
