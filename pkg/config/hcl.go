// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

// 🔧 HCLParser implements the Parser interface for HCL scripts
type HCLParser struct{}

func init() {
	Register(&HCLParser{})
}

// 📋 hclScript mirrors Script with HCL block tags
type hclScript struct {
	Patches []*hclPatch `hcl:"patch,block"`
}

// 📋 hclPatch mirrors RewriteSpec with HCL attribute/block tags
type hclPatch struct {
	Name string `hcl:"name,label"`

	Method         *string  `hcl:"method,optional"`
	Keyword        *string  `hcl:"keyword,optional"`
	ReturnType     *string  `hcl:"return_type,optional"`
	NameFilter     *string  `hcl:"name_filter,optional"`
	IgnorePatterns []string `hcl:"ignore_patterns,optional"`
	Recursive      *bool    `hcl:"recursive,optional"`

	RewriteBody  *string           `hcl:"rewrite_body,optional"`
	Replace      *hclReplacement   `hcl:"replace,block"`
	RegexReplace *hclReplacement   `hcl:"regex_replace,block"`
	DeleteString *string           `hcl:"delete_string,optional"`
	AfterLine    *hclInsertion     `hcl:"after_line,block"`
	BeforeLine   *hclInsertion     `hcl:"before_line,block"`
	AtLine       *hclLineInsertion `hcl:"at_line,block"`
	DeleteMethod *bool             `hcl:"delete_method,optional"`
}

type hclReplacement struct {
	Old string `hcl:"old"`
	New string `hcl:"new"`
}

type hclInsertion struct {
	Anchor string `hcl:"anchor"`
	Code   string `hcl:"code"`
}

type hclLineInsertion struct {
	Index string `hcl:"index"`
	Code  string `hcl:"code"`
}

func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Script, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "script.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var raw hclScript
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &raw)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	script := &Script{Patches: make([]*RewriteSpec, 0, len(raw.Patches))}
	for _, pb := range raw.Patches {
		script.Patches = append(script.Patches, pb.toSpec())
	}
	return script, nil
}

// 🔄 toSpec converts the HCL shape into the canonical RewriteSpec
func (p *hclPatch) toSpec() *RewriteSpec {
	spec := &RewriteSpec{
		Name:           p.Name,
		IgnorePatterns: p.IgnorePatterns,
		RewriteBody:    p.RewriteBody,
		DeleteString:   p.DeleteString,
	}

	if p.Method != nil {
		spec.Method = *p.Method
	}
	if p.Keyword != nil {
		spec.Keyword = *p.Keyword
	}
	if p.ReturnType != nil {
		spec.ReturnType = *p.ReturnType
	}
	if p.NameFilter != nil {
		spec.NameFilter = *p.NameFilter
	}
	if p.Recursive != nil {
		spec.Recursive = *p.Recursive
	}
	if p.DeleteMethod != nil {
		spec.DeleteMethod = *p.DeleteMethod
	}
	if p.Replace != nil {
		spec.Replace = &Replacement{Old: p.Replace.Old, New: p.Replace.New}
	}
	if p.RegexReplace != nil {
		spec.RegexReplace = &Replacement{Old: p.RegexReplace.Old, New: p.RegexReplace.New}
	}
	if p.AfterLine != nil {
		spec.AfterLine = &Insertion{Anchor: p.AfterLine.Anchor, Code: p.AfterLine.Code}
	}
	if p.BeforeLine != nil {
		spec.BeforeLine = &Insertion{Anchor: p.BeforeLine.Anchor, Code: p.BeforeLine.Code}
	}
	if p.AtLine != nil {
		spec.AtLine = &LineInsertion{Index: p.AtLine.Index, Code: p.AtLine.Code}
	}

	return spec
}
