package support

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/flatdoc/internal/testutil"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

func (testCtx *TestContext) aSyntheticDocumentInTheInputDirectory(name string) error {
	img, _ := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	return utils.SaveImage(img, filepath.Join(testCtx.InputDir, name))
}

func (testCtx *TestContext) aBlankImageInTheInputDirectory(name string) error {
	return utils.SaveImage(testutil.Blank(400, 560, 255), filepath.Join(testCtx.InputDir, name))
}

func (testCtx *TestContext) aTextFileInTheInputDirectory(name string) error {
	return os.WriteFile(filepath.Join(testCtx.InputDir, name), []byte("not an image"), 0o600)
}

func (testCtx *TestContext) theOutputDirectoryForShouldContain(doc, file string) error {
	path := filepath.Join(testCtx.OutputDir, doc, file)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected %s: %w", path, err)
	}
	return nil
}

// RegisterImageSteps registers the input fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a synthetic document "([^"]*)" in the input directory$`, testCtx.aSyntheticDocumentInTheInputDirectory)
	sc.Step(`^a blank image "([^"]*)" in the input directory$`, testCtx.aBlankImageInTheInputDirectory)
	sc.Step(`^a text file "([^"]*)" in the input directory$`, testCtx.aTextFileInTheInputDirectory)
	sc.Step(`^the output directory for "([^"]*)" should contain "([^"]*)"$`, testCtx.theOutputDirectoryForShouldContain)
}
