package support

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/flatdoc/cmd/flatdoc/cmd"
)

// iRunFlatdocWith executes the CLI in-process. Placeholders {input},
// {output} and {tmp} point into the scenario's temp directory.
func (testCtx *TestContext) iRunFlatdocWith(args string) error {
	root := cmd.GetRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(strings.Fields(testCtx.expand(args)))
	testCtx.LastError = root.Execute()
	testCtx.LastOutput = out.String()
	root.SetArgs(nil)
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command failed: %w\n%s", testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command succeeded unexpectedly:\n%s", testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(path string) error {
	path = testCtx.expand(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

// RegisterCLISteps registers the command line steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run flatdoc with "([^"]*)"$`, testCtx.iRunFlatdocWith)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should contain '([^']*)'$`, testCtx.theOutputShouldContain)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
