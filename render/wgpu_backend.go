package render

import (
	_ "embed"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/LNSEAB/shaderbox/common"
	"github.com/LNSEAB/shaderbox/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/overlay.wgsl
var overlaySource string

// planeVertex matches the vertex layout of the full-screen plane: a vec3
// position in clip space and a vec2 texture coordinate with (0,0) at the
// top-left corner.
type planeVertex struct {
	Position [3]float32
	Coord    [2]float32
}

// planeVertices spans the whole clip-space viewport with two triangles.
var planeVertices = []planeVertex{
	{Position: [3]float32{-1, 1, 0}, Coord: [2]float32{0, 0}},
	{Position: [3]float32{1, 1, 0}, Coord: [2]float32{1, 0}},
	{Position: [3]float32{-1, -1, 0}, Coord: [2]float32{0, 1}},
	{Position: [3]float32{1, -1, 0}, Coord: [2]float32{1, 1}},
}

var planeIndices = []uint32{0, 1, 2, 1, 3, 2}

const planeIndexCount = 6

// wgpuBackend owns the raw WebGPU objects behind the Engine. Everything here
// must run on the window pump thread.
type wgpuBackend interface {
	// ConfigureSurface is a wrapper for boilerplate logic required when calling ConfigureSurface on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// InstallPipeline builds a render pipeline from the bytecode and makes it
	// current. The previous pipeline moves to the retired list and is released
	// once the GPU queue drains.
	//
	// Parameters:
	//   - bc: validated bytecode for the plane vertex and user pixel stages
	//
	// Returns:
	//   - error: an error if shader module or pipeline creation fails
	InstallPipeline(bc *shader.Bytecode) error

	// SetOverlay uploads the overlay image as a texture drawn over the shader
	// output each frame. Pass nil to remove the overlay.
	//
	// Parameters:
	//   - img: the RGBA overlay image, or nil
	SetOverlay(img *image.RGBA)

	// RenderFrame records and submits one full frame: uniform upload, clear,
	// shader draw (if a pipeline is installed), overlay draw, present.
	//
	// Parameters:
	//   - params: the per-frame uniform record
	//
	// Returns:
	//   - error: ErrDeviceLost when the surface cannot be re-acquired
	RenderFrame(params Parameters) error

	// ReadBack renders the current pipeline into an offscreen RGBA8 target
	// and copies the pixels back to the CPU.
	//
	// Parameters:
	//   - params: the uniform record to render with
	//
	// Returns:
	//   - *image.RGBA: the captured frame
	//   - error: an error if rendering or the buffer map fails
	ReadBack(params Parameters) (*image.RGBA, error)

	// Destroy releases every GPU object held by the backend.
	Destroy()
}

type wgpuBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	clearColor    wgpu.Color

	width  int
	height int

	// Full-screen plane geometry shared by the shader pass and the overlay.
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer

	// Parameter uniform at group 0 binding 0, written once per frame.
	uniformBuffer   *wgpu.Buffer
	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup
	pipelineLayout  *wgpu.PipelineLayout

	pipeline *wgpu.RenderPipeline
	current  *shader.Bytecode

	// retired holds superseded pipelines until the queue reports empty; a
	// pipeline may still be referenced by in-flight frames when it is
	// replaced, so release is deferred.
	retired []*wgpu.RenderPipeline

	overlayPipeline  *wgpu.RenderPipeline
	overlayLayout    *wgpu.BindGroupLayout
	overlaySampler   *wgpu.Sampler
	overlayTexture   *wgpu.Texture
	overlayView      *wgpu.TextureView
	overlayBindGroup *wgpu.BindGroup
	overlayW         int
	overlayH         int
}

var _ wgpuBackend = &wgpuBackendImpl{}

func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter, vsync bool, clearColor [3]float64) (wgpuBackend, error) {
	runtime.LockOSThread()
	b := &wgpuBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  wgpu.Color{R: clearColor[0], G: clearColor[1], B: clearColor[2], A: 1.0},
	}
	if vsync {
		b.presentMode = wgpu.PresentModeFifo
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Viewer Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.initSharedResources(); err != nil {
		b.Destroy()
		return nil, err
	}

	return b, nil
}

// initSharedResources creates the resources that survive pipeline swaps: the
// plane vertex and index buffers, the parameter uniform buffer, and the bind
// group wiring uniform group 0 binding 0.
func (b *wgpuBackendImpl) initSharedResources() error {
	vertexData := common.SliceToBytes(planeVertices)
	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Plane Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(vb, 0, vertexData)
	b.vertexBuffer = vb

	indexData := common.SliceToBytes(planeIndices)
	ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Plane Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(ib, 0, indexData)
	b.indexBuffer = ib

	ub, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Parameters Buffer",
		Size:             paramsByteSize,
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	b.uniformBuffer = ub

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Parameters Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: paramsByteSize,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	b.bindGroupLayout = layout

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Parameters Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  ub,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		return err
	}
	b.bindGroup = bindGroup

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Viewer Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return err
	}
	b.pipelineLayout = pipelineLayout

	return nil
}

// planeVertexLayout describes the plane vertex buffer to the pipeline.
func planeVertexLayout() []wgpu.VertexBufferLayout {
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: 20,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			},
		},
	}
}

func (b *wgpuBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.width, b.height = width, height

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuBackendImpl) InstallPipeline(bc *shader.Bytecode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	created, err := b.buildPipeline(bc, *b.surfaceFormat)
	if err != nil {
		return err
	}

	if b.pipeline != nil {
		b.retired = append(b.retired, b.pipeline)
	}
	b.pipeline = created
	b.current = bc

	return nil
}

// buildPipeline creates the two shader modules and the render pipeline for
// the given color target format. Shader modules are released once the
// pipeline holds them.
func (b *wgpuBackendImpl) buildPipeline(bc *shader.Bytecode, format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Plane Vertex Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: bc.Vertex.WGSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex shader module: %w", err)
	}
	defer vs.Release()

	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Pixel Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: bc.Pixel.WGSL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel shader module: %w", err)
	}
	defer fs.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Viewer Render Pipeline",
		Layout: b.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: bc.Vertex.EntryPoint,
			Buffers:    planeVertexLayout(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: bc.Pixel.EntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: nil,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (b *wgpuBackendImpl) SetOverlay(img *image.RGBA) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if img == nil {
		b.releaseOverlayTarget()
		return
	}

	if err := b.ensureOverlayPipeline(); err != nil {
		return
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if b.overlayTexture == nil || w != b.overlayW || h != b.overlayH {
		b.releaseOverlayTarget()
		if err := b.createOverlayTarget(w, h); err != nil {
			return
		}
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  b.overlayTexture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		img.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: uint32(h),
		},
		&wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
	)
}

// ensureOverlayPipeline lazily creates the overlay sampler, bind group
// layout, and alpha-blended pipeline. The overlay reuses the plane geometry
// and samples a single texture.
func (b *wgpuBackendImpl) ensureOverlayPipeline() error {
	if b.overlayPipeline != nil {
		return nil
	}

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Overlay Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}
	b.overlaySampler = samp

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Overlay Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	b.overlayLayout = layout

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Overlay Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Overlay Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: overlaySource,
		},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Overlay Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    planeVertexLayout(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    *b.surfaceFormat,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: nil,
	})
	if err != nil {
		return err
	}
	b.overlayPipeline = created

	return nil
}

// createOverlayTarget allocates the overlay texture and its bind group for
// the given image size.
func (b *wgpuBackendImpl) createOverlayTarget(width, height int) error {
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Overlay Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Overlay Bind Group",
		Layout: b.overlayLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: b.overlaySampler},
		},
	})
	if err != nil {
		view.Release()
		tex.Release()
		return err
	}

	b.overlayTexture = tex
	b.overlayView = view
	b.overlayBindGroup = bindGroup
	b.overlayW = width
	b.overlayH = height

	return nil
}

func (b *wgpuBackendImpl) releaseOverlayTarget() {
	if b.overlayBindGroup != nil {
		b.overlayBindGroup.Release()
		b.overlayBindGroup = nil
	}
	if b.overlayView != nil {
		b.overlayView.Release()
		b.overlayView = nil
	}
	if b.overlayTexture != nil {
		b.overlayTexture.Release()
		b.overlayTexture = nil
	}
	b.overlayW, b.overlayH = 0, 0
}

func (b *wgpuBackendImpl) RenderFrame(params Parameters) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		// An outdated swapchain recovers after one reconfigure; anything
		// that survives the retry is treated as a lost device.
		b.reconfigureLocked()
		surfaceTexture, err = b.surface.GetCurrentTexture()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceLost, err)
		}
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	b.queue.WriteBuffer(b.uniformBuffer, 0, common.SliceToBytes(params.floats()))

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
	})
	b.encodeDraws(pass, true)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	b.surface.Present()

	b.collectRetired()

	return nil
}

// encodeDraws records the shader draw and, optionally, the overlay draw into
// the given pass. Both draws share the plane geometry.
func (b *wgpuBackendImpl) encodeDraws(pass *wgpu.RenderPassEncoder, withOverlay bool) {
	if b.pipeline != nil {
		pass.SetPipeline(b.pipeline)
		pass.SetBindGroup(0, b.bindGroup, nil)
		pass.SetVertexBuffer(0, b.vertexBuffer, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(b.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(planeIndexCount, 1, 0, 0, 0)
	}

	if withOverlay && b.overlayPipeline != nil && b.overlayBindGroup != nil {
		pass.SetPipeline(b.overlayPipeline)
		pass.SetBindGroup(0, b.overlayBindGroup, nil)
		pass.SetVertexBuffer(0, b.vertexBuffer, 0, wgpu.WholeSize)
		pass.SetIndexBuffer(b.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(planeIndexCount, 1, 0, 0, 0)
	}
}

// reconfigureLocked re-applies the current surface configuration. Caller must
// hold the mutex.
func (b *wgpuBackendImpl) reconfigureLocked() {
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(b.width),
		Height:      uint32(b.height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

// collectRetired releases superseded pipelines once the queue reports empty,
// guaranteeing no in-flight frame still references them.
func (b *wgpuBackendImpl) collectRetired() {
	if len(b.retired) == 0 {
		return
	}
	if queueEmpty := b.device.Poll(false, nil); !queueEmpty {
		return
	}
	for _, p := range b.retired {
		p.Release()
	}
	b.retired = b.retired[:0]
}

// readbackAlign is the row alignment WebGPU requires for texture-to-buffer
// copies (COPY_BYTES_PER_ROW_ALIGNMENT).
const readbackAlign = 256

func (b *wgpuBackendImpl) ReadBack(params Parameters) (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return nil, ErrNoFrame
	}

	width, height := b.width, b.height

	// The capture target is always RGBA8 regardless of the swapchain format,
	// so the readback maps directly onto image.RGBA.
	capturePipeline, err := b.buildPipeline(b.current, wgpu.TextureFormatRGBA8UnormSrgb)
	if err != nil {
		return nil, err
	}
	defer capturePipeline.Release()

	target, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Capture Texture",
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	defer target.Release()

	view, err := target.CreateView(nil)
	if err != nil {
		return nil, err
	}
	defer view.Release()

	bytesPerRow := uint32((width*4 + readbackAlign - 1) &^ (readbackAlign - 1))
	bufferSize := uint64(bytesPerRow) * uint64(height)

	readBuffer, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "Capture Readback Buffer",
		Size:             bufferSize,
		Usage:            wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	defer readBuffer.Release()

	b.queue.WriteBuffer(b.uniformBuffer, 0, common.SliceToBytes(params.floats()))

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
	})
	pass.SetPipeline(capturePipeline)
	pass.SetBindGroup(0, b.bindGroup, nil)
	pass.SetVertexBuffer(0, b.vertexBuffer, 0, wgpu.WholeSize)
	pass.SetIndexBuffer(b.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	pass.DrawIndexed(planeIndexCount, 1, 0, 0, 0)
	pass.End()

	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  target,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: readBuffer,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: uint32(height),
			},
		},
		&wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
	)

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return nil, err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)

	var mapStatus wgpu.BufferMapAsyncStatus
	err = readBuffer.MapAsync(wgpu.MapModeRead, 0, bufferSize, func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
	})
	if err != nil {
		return nil, err
	}
	b.device.Poll(true, nil)
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("failed to map readback buffer: status %v", mapStatus)
	}
	defer readBuffer.Unmap()

	mapped := readBuffer.GetMappedRange(0, uint(bufferSize))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowBytes := width * 4
	for y := 0; y < height; y++ {
		src := mapped[y*int(bytesPerRow) : y*int(bytesPerRow)+rowBytes]
		dst := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		copy(dst, src)
	}

	return img, nil
}

func (b *wgpuBackendImpl) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.retired {
		p.Release()
	}
	b.retired = nil

	if b.pipeline != nil {
		b.pipeline.Release()
		b.pipeline = nil
	}
	b.releaseOverlayTarget()
	if b.overlayPipeline != nil {
		b.overlayPipeline.Release()
		b.overlayPipeline = nil
	}
	if b.overlayLayout != nil {
		b.overlayLayout.Release()
		b.overlayLayout = nil
	}
	if b.overlaySampler != nil {
		b.overlaySampler.Release()
		b.overlaySampler = nil
	}
	if b.pipelineLayout != nil {
		b.pipelineLayout.Release()
		b.pipelineLayout = nil
	}
	if b.bindGroup != nil {
		b.bindGroup.Release()
		b.bindGroup = nil
	}
	if b.bindGroupLayout != nil {
		b.bindGroupLayout.Release()
		b.bindGroupLayout = nil
	}
	if b.uniformBuffer != nil {
		b.uniformBuffer.Release()
		b.uniformBuffer = nil
	}
	if b.indexBuffer != nil {
		b.indexBuffer.Release()
		b.indexBuffer = nil
	}
	if b.vertexBuffer != nil {
		b.vertexBuffer.Release()
		b.vertexBuffer = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
