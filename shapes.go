package iwa

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

type fieldType = descriptorpb.FieldDescriptorProto_Type

const (
	tBool   = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	tUint32 = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	tUint64 = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	tInt32  = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tFloat  = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	tDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	tString = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES
)

func field(num int32, name string, label descriptorpb.FieldDescriptorProto_Label, t fieldType, typeName string) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  label.Enum(),
		Type:   t.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func opt(num int32, name string, t fieldType) *descriptorpb.FieldDescriptorProto {
	return field(num, name, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, t, "")
}

func rep(num int32, name string, t fieldType) *descriptorpb.FieldDescriptorProto {
	return field(num, name, descriptorpb.FieldDescriptorProto_LABEL_REPEATED, t, "")
}

func optMsg(num int32, name, typeName string) *descriptorpb.FieldDescriptorProto {
	return field(num, name, descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, typeName)
}

func repMsg(num int32, name, typeName string) *descriptorpb.FieldDescriptorProto {
	return field(num, name, descriptorpb.FieldDescriptorProto_LABEL_REPEATED, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, typeName)
}

func msg(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func protoFile(name, pkg string, deps []string, msgs ...*descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(name),
		Package:     proto.String(pkg),
		Dependency:  deps,
		Syntax:      proto.String("proto2"),
		MessageType: msgs,
	}
}

const (
	refType     = ".TSP.Reference"
	dataRefType = ".TSP.DataReference"
	sizeType    = ".TSP.Size"
	pointType   = ".TSP.Point"

	tspProto  = "iwa/tsp.proto"
	tskProto  = "iwa/tsk.proto"
	tssProto  = "iwa/tss.proto"
	tswpProto = "iwa/tswp.proto"
	tsdProto  = "iwa/tsd.proto"
)

// commonFiles returns the shared schema files in dependency order.
func commonFiles() []*descriptorpb.FileDescriptorProto {
	return []*descriptorpb.FileDescriptorProto{
		protoFile(tspProto, "TSP", nil,
			msg("Reference", opt(1, "identifier", tUint64)),
			msg("DataReference", opt(1, "identifier", tUint64)),
			msg("UUID", opt(1, "lower", tUint64), opt(2, "upper", tUint64)),
			msg("Point", opt(1, "x", tFloat), opt(2, "y", tFloat)),
			msg("Size", opt(1, "width", tFloat), opt(2, "height", tFloat)),
			msg("DataInfo",
				opt(1, "identifier", tUint64),
				opt(2, "digest", tBytes),
				opt(3, "preferred_file_name", tString),
				opt(4, "file_name", tString),
				opt(5, "document_resource_locator", tString)),
			msg("PackageMetadata",
				opt(1, "last_object_identifier", tUint64),
				rep(2, "revision", tUint32),
				repMsg(3, "datas", ".TSP.DataInfo")),
			msg("PasteboardMetadata",
				rep(1, "version", tUint32),
				opt(2, "app_name", tString),
				repMsg(3, "datas", ".TSP.DataInfo")),
		),
		protoFile(tskProto, "TSK", []string{tspProto},
			msg("DocumentArchive",
				repMsg(1, "children", refType),
				optMsg(3, "annotation_author_storage", refType),
				opt(4, "locale_identifier", tString),
				opt(5, "creation_language", tString)),
			msg("CommandHistory",
				opt(1, "undo_count", tUint32),
				repMsg(2, "commands", refType),
				repMsg(3, "marked_redo_commands", refType)),
			msg("ViewStateArchive", optMsg(1, "view_state_root", refType)),
			msg("DocumentSupportArchive",
				optMsg(1, "command_history", refType),
				opt(2, "undo_count", tUint32),
				opt(3, "redo_count", tUint32),
				opt(4, "undo_menu_text", tString),
				opt(5, "redo_menu_text", tString),
				optMsg(6, "web_state", refType)),
			msg("AnnotationAuthorArchive", opt(1, "name", tString)),
			msg("AnnotationAuthorStorageArchive", repMsg(1, "annotation_author", refType)),
		),
		protoFile(tssProto, "TSS", []string{tspProto},
			msg("StyleEntry", opt(1, "identifier", tString), optMsg(2, "style", refType)),
			msg("StylesheetArchive",
				repMsg(1, "styles", refType),
				repMsg(2, "identifier_to_style_map", ".TSS.StyleEntry"),
				optMsg(3, "parent", refType),
				opt(4, "is_locked", tBool)),
			msg("ThemeArchive",
				optMsg(1, "stylesheet", refType),
				opt(2, "theme_identifier", tString),
				rep(3, "color_presets", tUint32)),
		),
		protoFile(tswpProto, "TSWP", []string{tspProto},
			msg("ObjectAttributeTableEntry", opt(1, "character_index", tUint32), optMsg(2, "object", refType)),
			msg("ObjectAttributeTable", repMsg(1, "entries", ".TSWP.ObjectAttributeTableEntry")),
			msg("StorageArchive",
				opt(1, "kind", tUint32),
				optMsg(2, "style_sheet", refType),
				rep(3, "text", tString),
				opt(4, "has_itext", tBool),
				opt(5, "in_document", tBool),
				optMsg(6, "table_para_style", ".TSWP.ObjectAttributeTable"),
				optMsg(7, "table_char_style", ".TSWP.ObjectAttributeTable")),
			msg("ShapeInfoArchive", optMsg(1, "owned_storage", refType), opt(2, "is_text_box", tBool)),
			msg("StyleArchive",
				opt(1, "name", tString),
				opt(2, "style_identifier", tString),
				optMsg(3, "parent", refType),
				opt(4, "is_variation", tBool)),
		),
		protoFile(tsdProto, "TSD", []string{tspProto},
			msg("GeometryArchive",
				optMsg(1, "position", pointType),
				optMsg(2, "size", sizeType),
				opt(3, "flags", tUint32),
				opt(4, "angle", tFloat)),
			msg("DrawableArchive",
				optMsg(1, "geometry", ".TSD.GeometryArchive"),
				optMsg(2, "parent", refType),
				opt(3, "locked", tBool)),
			msg("ShapeArchive",
				optMsg(1, "super", ".TSD.DrawableArchive"),
				optMsg(2, "style", refType),
				opt(3, "path_source", tBytes)),
			msg("ImageArchive",
				optMsg(1, "super", ".TSD.DrawableArchive"),
				optMsg(11, "data", dataRefType),
				optMsg(12, "original_size", sizeType)),
		),
	}
}

// commonTypes are shared by every document family.
var commonTypes = []typeEntry{
	{200, "TSK.DocumentArchive"},
	{201, "TSK.CommandHistory"},
	{210, "TSK.ViewStateArchive"},
	{211, "TSK.DocumentSupportArchive"},
	{212, "TSK.AnnotationAuthorArchive"},
	{213, "TSK.AnnotationAuthorStorageArchive"},
	{400, "TSS.ThemeArchive"},
	{401, "TSS.StylesheetArchive"},
	{2001, "TSWP.StorageArchive"},
	{2011, "TSWP.ShapeInfoArchive"},
	{2021, "TSWP.StyleArchive"},
	{2022, "TSWP.StyleArchive"},
	{3004, "TSD.ShapeArchive"},
	{3005, "TSD.ImageArchive"},
	{11006, "TSP.PackageMetadata"},
	{11007, "TSP.PasteboardMetadata"},
}

var commonDeps = []string{tspProto, tskProto, tssProto, tswpProto, tsdProto}

func keynoteFile() *descriptorpb.FileDescriptorProto {
	return protoFile("iwa/keynote.proto", "KN", commonDeps,
		msg("DocumentArchive",
			optMsg(1, "super", ".TSK.DocumentArchive"),
			optMsg(2, "show", refType)),
		msg("SlideTreeArchive", optMsg(1, "root_slide_node", refType)),
		msg("ShowArchive",
			optMsg(1, "size", sizeType),
			optMsg(2, "theme", refType),
			optMsg(3, "slide_tree", ".KN.SlideTreeArchive"),
			opt(4, "loop_slideshow", tBool)),
		msg("UIStateArchive",
			opt(1, "selected_slide_index", tUint32),
			opt(2, "slide_view_zoom", tFloat)),
		msg("SlideNodeArchive",
			repMsg(1, "children", refType),
			optMsg(2, "slide", refType),
			opt(3, "is_hidden", tBool),
			opt(4, "is_collapsed", tBool)),
		msg("SlideArchive",
			optMsg(1, "style", refType),
			repMsg(2, "builds", refType),
			repMsg(3, "owned_drawables", refType),
			optMsg(4, "title_placeholder", refType),
			optMsg(5, "body_placeholder", refType),
			opt(6, "name", tString),
			optMsg(7, "note", refType)),
		msg("PlaceholderArchive",
			optMsg(1, "super", ".TSWP.ShapeInfoArchive"),
			opt(2, "kind", tUint32)),
		msg("BuildArchive",
			optMsg(1, "drawable", refType),
			opt(2, "delivery", tString),
			opt(3, "duration", tDouble)),
		msg("ThemeArchive",
			optMsg(1, "super", ".TSS.ThemeArchive"),
			repMsg(2, "templates", refType)),
		msg("NoteArchive", optMsg(1, "contained_storage", refType)),
	)
}

var keynoteTypes = []typeEntry{
	{1, "KN.DocumentArchive"},
	{2, "KN.ShowArchive"},
	{3, "KN.UIStateArchive"},
	{4, "KN.SlideNodeArchive"},
	{5, "KN.SlideArchive"},
	{6, "KN.SlideArchive"},
	{7, "KN.PlaceholderArchive"},
	{8, "KN.BuildArchive"},
	{10, "KN.ThemeArchive"},
	{15, "KN.NoteArchive"},
}

func pagesFile() *descriptorpb.FileDescriptorProto {
	return protoFile("iwa/pages.proto", "TP", commonDeps,
		msg("DocumentArchive",
			optMsg(1, "super", ".TSK.DocumentArchive"),
			optMsg(2, "body_storage", refType),
			optMsg(3, "stylesheet", refType),
			optMsg(4, "settings", refType),
			optMsg(5, "page_size", sizeType),
			opt(6, "orientation", tUint32),
			opt(7, "uses_single_header_footer", tBool)),
		msg("ThemeArchive", optMsg(1, "super", ".TSS.ThemeArchive")),
		msg("PageGroup", opt(1, "page_index", tUint32), repMsg(2, "drawables", refType)),
		msg("FloatingDrawablesArchive", repMsg(1, "page_groups", ".TP.PageGroup")),
		msg("SectionArchive",
			opt(1, "name", tString),
			repMsg(2, "header_storages", refType),
			repMsg(3, "footer_storages", refType)),
		msg("SettingsArchive",
			opt(1, "body", tBool),
			opt(2, "headers", tBool),
			opt(3, "footers", tBool),
			opt(4, "hyphenation", tBool),
			opt(5, "ligatures", tBool)),
	)
}

var pagesTypes = []typeEntry{
	{10000, "TP.DocumentArchive"},
	{10001, "TP.ThemeArchive"},
	{10010, "TP.FloatingDrawablesArchive"},
	{10011, "TP.SectionArchive"},
	{10012, "TP.SettingsArchive"},
}

func numbersFile() *descriptorpb.FileDescriptorProto {
	return protoFile("iwa/numbers.proto", "TN", commonDeps,
		msg("DocumentArchive",
			optMsg(1, "super", ".TSK.DocumentArchive"),
			repMsg(2, "sheets", refType),
			optMsg(3, "stylesheet", refType),
			optMsg(4, "theme", refType),
			optMsg(5, "calculation_engine", refType)),
		msg("SheetArchive",
			opt(1, "name", tString),
			repMsg(2, "drawable_infos", refType),
			opt(3, "in_portrait_page_orientation", tBool),
			opt(4, "show_repeating_headers", tBool),
			opt(5, "content_scale", tFloat)),
		msg("ThemeArchive", optMsg(1, "super", ".TSS.ThemeArchive")),
		msg("UIStateArchive",
			opt(1, "active_sheet_index", tUint32),
			rep(2, "selected_sheet_names", tString),
			opt(3, "sheet_zoom", tDouble),
			opt(4, "active_sheet_offset", tInt32)),
	)
}

var numbersTypes = []typeEntry{
	{1, "TN.DocumentArchive"},
	{2, "TN.SheetArchive"},
	{3, "TN.ThemeArchive"},
	{4, "TN.UIStateArchive"},
}
